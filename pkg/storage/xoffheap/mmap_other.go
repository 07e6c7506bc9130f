//go:build !unix

package xoffheap

import "os"

func mapAnon(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmap([]byte) error { return nil }

func pageSize() int {
	return os.Getpagesize()
}

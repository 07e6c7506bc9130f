package xbufpool_test

import (
	"context"
	"fmt"
	"log"

	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
	"github.com/omeyang/xgrid/pkg/util/xbufpool"
)

func ExamplePool_With() {
	pool, err := xbufpool.New(xbufpool.WithSize(4), xbufpool.WithBufferSize(128))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	err = pool.With(context.Background(), func(buf *xcodec.Buffer) error {
		buf.PutString("scratch")
		fmt.Println(buf.Len())
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(pool.Stats().InUse)
	// Output:
	// 8
	// 0
}

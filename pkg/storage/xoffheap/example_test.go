package xoffheap_test

import (
	"context"
	"fmt"

	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
	"github.com/omeyang/xgrid/pkg/storage/xoffheap"
	"github.com/omeyang/xgrid/pkg/storage/xstore"
)

func ExampleNew() {
	acc := xcapacity.New(xcapacity.Restriction{MaxMemoryBytes: 1 << 20})
	s, err := xoffheap.New(acc, xoffheap.WithShards(16))
	if err != nil {
		panic(err)
	}
	defer s.Destroy() //nolint:errcheck // 示例

	ctx := context.Background()
	if err := s.Put(ctx, "greeting", xstore.Record{Data: []byte("hello")}); err != nil {
		panic(err)
	}
	data, ok, err := s.GetSerialized(ctx, "greeting")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data), ok, acc.Usage().MemoryUsed)
	// Output: hello true 5
}

package xcodec

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int    `msgpack:"x"`
	Y int    `msgpack:"y"`
	L string `msgpack:"l"`
}

// =============================================================================
// 注册表测试
// =============================================================================

func TestCodec_BuiltinsRegistered(t *testing.T) {
	c := New()
	for _, typ := range []reflect.Type{
		reflect.TypeFor[string](),
		reflect.TypeFor[int32](),
		reflect.TypeFor[[]byte](),
		reflect.TypeFor[time.Time](),
		reflect.TypeFor[map[string]any](),
	} {
		assert.True(t, c.IsRegistered(typ), typ.String())
	}
	assert.False(t, c.IsRegistered(reflect.TypeFor[point]()))
}

func TestCodec_RegisterAssignsStableID(t *testing.T) {
	c := New()
	id, err := RegisterStruct[point](c)
	require.NoError(t, err)
	assert.Equal(t, FirstUserTypeID, id)

	other := NewSerializer("point-v2",
		func(b *Buffer, p point) error { b.PutVarint(int64(p.X)); return nil },
		func(b *Buffer) (point, error) { x, err := b.GetVarint(); return point{X: int(x)}, err })
	again, err := Register[point](c, other)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	r, err := c.Lookup(reflect.TypeFor[point]())
	require.NoError(t, err)
	assert.Equal(t, "point-v2", r.Serializer.Name())
}

func TestCodec_RegisterRejectsNil(t *testing.T) {
	c := New()
	_, err := c.Register(nil, boolSerializer)
	assert.ErrorIs(t, err, ErrNilType)

	_, err = c.Register(reflect.TypeFor[point](), nil)
	assert.ErrorIs(t, err, ErrNilSerializer)
}

func TestCodec_LookupFailures(t *testing.T) {
	c := New()
	_, err := c.Lookup(reflect.TypeFor[point]())
	assert.ErrorIs(t, err, ErrUnregisteredType)
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = c.LookupID(999)
	assert.ErrorIs(t, err, ErrUnknownTypeID)
}

func TestCodec_RegistrationsSortedAndPrintable(t *testing.T) {
	c := New()
	_, err := RegisterStruct[point](c)
	require.NoError(t, err)

	regs := c.Registrations()
	require.NotEmpty(t, regs)
	for i := 1; i < len(regs); i++ {
		assert.Less(t, regs[i-1].ID, regs[i].ID)
	}
	assert.Equal(t, FirstUserTypeID, regs[len(regs)-1].ID)

	s := c.String()
	assert.True(t, strings.HasPrefix(s, "xcodec.Codec(serializers="))
	assert.Contains(t, s, "msgpack:xcodec.point")
	assert.Contains(t, s, "string -> string")
}

func TestCodec_ConcurrentRegisterAndLookup(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = RegisterStruct[point](c)
		}()
		go func() {
			defer wg.Done()
			_ = c.IsRegistered(reflect.TypeFor[point]())
			_ = c.Registrations()
		}()
	}
	wg.Wait()

	r, err := c.Lookup(reflect.TypeFor[point]())
	require.NoError(t, err)
	assert.Equal(t, FirstUserTypeID, r.ID)
}

// =============================================================================
// Dynamic 编码测试
// =============================================================================

func TestCodec_DynamicRoundTrip(t *testing.T) {
	c := New()
	_, err := RegisterStruct[point](c)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	values := []any{
		nil,
		true,
		int(-5),
		int8(-8),
		int16(300),
		int32(-70000),
		int64(1 << 40),
		uint(5),
		uint8(255),
		uint16(65535),
		uint32(1 << 31),
		uint64(1 << 63),
		float32(1.5),
		float64(-2.25),
		"hello",
		[]byte("raw"),
		now,
		3 * time.Second,
		[]string{"a", "b"},
		[]any{"x", int64(1), nil},
		map[string]any{"k": "v", "n": int32(2)},
		point{X: 1, Y: 2, L: "p"},
	}

	buf := NewBuffer(0)
	for _, v := range values {
		require.NoError(t, c.WriteDynamic(buf, v), "%T", v)
	}
	for _, want := range values {
		got, err := c.ReadDynamic(buf)
		require.NoError(t, err)
		if tm, ok := want.(time.Time); ok {
			assert.True(t, tm.Equal(got.(time.Time)))
			continue
		}
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, buf.Remaining())
}

func TestCodec_WriteDynamicUnregistered(t *testing.T) {
	c := New()
	err := c.WriteDynamic(NewBuffer(0), point{})
	assert.ErrorIs(t, err, ErrUnregisteredType)
}

func TestCodec_ReadDynamicUnknownID(t *testing.T) {
	c := New()
	buf := NewBuffer(0)
	buf.PutUvarint(12345)

	_, err := c.ReadDynamic(buf)
	assert.ErrorIs(t, err, ErrUnknownTypeID)
}

func TestCodec_MapEncodingIsDeterministic(t *testing.T) {
	c := New()
	m := map[string]any{"z": 1, "a": 2, "m": 3}

	first := NewBuffer(0)
	require.NoError(t, c.WriteDynamic(first, m))
	for range 10 {
		next := NewBuffer(0)
		require.NoError(t, c.WriteDynamic(next, m))
		assert.Equal(t, first.Bytes(), next.Bytes())
	}
}

func TestCodec_CorruptIntegerRange(t *testing.T) {
	c := New()
	buf := NewBuffer(0)
	buf.PutUvarint(uint64(TypeInt8))
	buf.PutVarint(1000)

	_, err := c.ReadDynamic(buf)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// =============================================================================
// 字段编码测试
// =============================================================================

func TestCodec_FixedFieldPresence(t *testing.T) {
	c := New()
	f := FixedField[int32]("version")

	buf := NewBuffer(0)
	require.NoError(t, c.WriteField(buf, f, nil))
	require.NoError(t, c.WriteField(buf, f, int32(7)))
	assert.Equal(t, byte(0), buf.Bytes()[0])
	assert.Equal(t, byte(1), buf.Bytes()[1])

	v, err := c.ReadField(buf, f)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = c.ReadField(buf, f)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestCodec_FixedFieldTypeMismatch(t *testing.T) {
	c := New()
	err := c.WriteField(NewBuffer(0), FixedField[int32]("version"), int64(7))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "field version")
}

func TestCodec_FixedFieldBadPresence(t *testing.T) {
	c := New()
	buf := NewBuffer(0)
	buf.PutByte(2)

	_, err := c.ReadField(buf, FixedField[int32]("version"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCodec_SkipFieldReportsSpan(t *testing.T) {
	c := New()
	key := DynamicField("key")
	buf := NewBuffer(0)
	require.NoError(t, c.WriteField(buf, key, "abc"))
	require.NoError(t, c.WriteField(buf, key, "d"))

	start, end, err := c.SkipField(buf, key)
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	start, end, err = c.SkipField(buf, key)
	require.NoError(t, err)
	assert.Equal(t, 5, start)
	assert.Equal(t, buf.Len(), end)
}

func TestCodec_SerializerWrongType(t *testing.T) {
	err := stringSerializer.Write(NewBuffer(0), 42)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestFieldKind_String(t *testing.T) {
	assert.Equal(t, "fixed", Fixed.String())
	assert.Equal(t, "dynamic", Dynamic.String())
	assert.Equal(t, "FieldKind(9)", FieldKind(9).String())
	assert.Equal(t, "version:fixed:int32", FixedField[int32]("version").String())
	assert.Equal(t, "key:dynamic", DynamicField("key").String())
}

package xentry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
)

type user struct {
	ID   int    `msgpack:"id"`
	Name string `msgpack:"name"`
}

func newTestSerializer(t *testing.T) *Serializer {
	t.Helper()
	codec := xcodec.New()
	_, err := xcodec.RegisterStruct[user](codec)
	require.NoError(t, err)
	s, err := NewSerializer(codec)
	require.NoError(t, err)
	return s
}

func encode(t *testing.T, s *Serializer, e Entry) *xcodec.Buffer {
	t.Helper()
	buf := xcodec.NewBuffer(64)
	require.NoError(t, s.Encode(buf, e))
	return buf
}

// =============================================================================
// 构造测试
// =============================================================================

func TestNewSerializer_WithNilCodec_ReturnsError(t *testing.T) {
	_, err := NewSerializer(nil)
	assert.ErrorIs(t, err, ErrNilCodec)
}

func TestEntrySchema_Layout(t *testing.T) {
	require.Equal(t, 4, EntrySchema.Len())
	assert.Equal(t, "[key:dynamic version:fixed:int32 routing:dynamic value:dynamic]", EntrySchema.String())
}

func TestEntry_WithReturnsCopy(t *testing.T) {
	base := NewEntry("k", "v")
	versioned := base.WithVersion(3).WithRouting("r1")

	_, ok := base.VersionValue()
	assert.False(t, ok)
	assert.Nil(t, base.Routing)

	v, ok := versioned.VersionValue()
	assert.True(t, ok)
	assert.Equal(t, int32(3), v)
	assert.Equal(t, "r1", versioned.Routing)
	assert.Equal(t, "Entry{key=k version=3 routing=r1 value=v}", versioned.String())
}

// =============================================================================
// 编解码测试
// =============================================================================

func TestSerializer_RoundTrip(t *testing.T) {
	s := newTestSerializer(t)
	cases := []Entry{
		NewEntry("user:1", user{ID: 1, Name: "a"}),
		NewEntry(int64(7), []byte("payload")).WithVersion(9),
		NewEntry("k", map[string]any{"a": "b"}).WithRouting(int32(4)).WithVersion(-1),
		NewEntry("null-value", nil),
	}
	for _, e := range cases {
		buf := encode(t, s, e)
		got, err := s.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestSerializer_EncodeBytesMatchesEncode(t *testing.T) {
	s := newTestSerializer(t)
	e := NewEntry("user:1", user{ID: 1, Name: "a"})

	p, err := s.EncodeBytes(e)
	require.NoError(t, err)
	assert.Equal(t, encode(t, s, e).Bytes(), p)
}

func TestSerializer_EncodeUnregisteredValue(t *testing.T) {
	s, err := NewSerializer(xcodec.New())
	require.NoError(t, err)

	err = s.Encode(xcodec.NewBuffer(0), NewEntry("k", user{}))
	assert.ErrorIs(t, err, xcodec.ErrUnregisteredType)
}

func TestSerializer_DecodeTruncated(t *testing.T) {
	s := newTestSerializer(t)
	p, err := s.EncodeBytes(NewEntry("k", "value"))
	require.NoError(t, err)

	buf := xcodec.NewBuffer(0)
	buf.Wrap(p[:len(p)-2])
	_, err = s.Decode(buf)
	assert.ErrorIs(t, err, xcodec.ErrSerialization)
}

func TestSerializer_KeyBytesIsRecordPrefix(t *testing.T) {
	s := newTestSerializer(t)
	kb, err := s.KeyBytes("user:1")
	require.NoError(t, err)

	p, err := s.EncodeBytes(NewEntry("user:1", "v"))
	require.NoError(t, err)
	assert.Equal(t, kb, p[:len(kb)])
}

func TestSerializer_DecodeTrailingBytes(t *testing.T) {
	s := newTestSerializer(t)
	p, err := s.EncodeBytes(NewEntry("k", "value"))
	require.NoError(t, err)

	buf := xcodec.NewBuffer(0)
	buf.Wrap(append(p, 0x00, 0x01))
	before := buf.Save()
	_, err = s.Decode(buf)
	assert.ErrorIs(t, err, xcodec.ErrCorrupt)
	assert.ErrorIs(t, err, xcodec.ErrSerialization)
	assert.Equal(t, before, buf.Save())

	// 只读 key 的局部解码不关心尾部。
	id, err := s.DecodeID(buf)
	require.NoError(t, err)
	assert.Equal(t, "k", id)
}

// =============================================================================
// 局部解码测试
// =============================================================================

func TestSerializer_DecodeIDMatchesFullDecode(t *testing.T) {
	s := newTestSerializer(t)
	buf := encode(t, s, NewEntry("user:1", user{ID: 1}).WithVersion(2))
	require.NoError(t, buf.SetPosition(3))
	before := buf.Save()

	id, err := s.DecodeID(buf)
	require.NoError(t, err)
	assert.Equal(t, before, buf.Save())

	full, err := s.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, full.Key, id)
	assert.Equal(t, before, buf.Save())
}

func TestSerializer_DecodeIDOnCorruptKey(t *testing.T) {
	s := newTestSerializer(t)
	buf := xcodec.NewBuffer(0)
	buf.PutUvarint(999)

	before := buf.Save()
	_, err := s.DecodeID(buf)
	assert.ErrorIs(t, err, xcodec.ErrUnknownTypeID)
	assert.Equal(t, before, buf.Save())
}

// =============================================================================
// 模板匹配测试
// =============================================================================

func TestSerializer_Matches(t *testing.T) {
	s := newTestSerializer(t)
	record := NewEntry("user:1", user{ID: 1, Name: "a"}).WithVersion(5).WithRouting("eu")
	buf := encode(t, s, record)

	tests := []struct {
		name     string
		template Entry
		want     bool
	}{
		{"empty template is wildcard", Entry{}, true},
		{"key only", Entry{Key: "user:1"}, true},
		{"key mismatch", Entry{Key: "user:2"}, false},
		{"key type differs", Entry{Key: []byte("user:1")}, false},
		{"version match", Entry{}.WithVersion(5), true},
		{"version mismatch", Entry{}.WithVersion(6), false},
		{"routing only", Entry{Routing: "eu"}, true},
		{"routing mismatch", Entry{Routing: "us"}, false},
		{"full match", record, true},
		{"value mismatch", Entry{Value: user{ID: 1, Name: "b"}}, false},
		{"key matches value differs", Entry{Key: "user:1", Value: user{ID: 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := buf.Save()
			got, err := s.Matches(buf, tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, buf.Save())
		})
	}
}

func TestSerializer_MatchesAgainstNullField(t *testing.T) {
	s := newTestSerializer(t)
	buf := encode(t, s, NewEntry("k", "v"))

	ok, err := s.Matches(buf, Entry{}.WithVersion(1))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Matches(buf, Entry{Routing: "r"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerializer_MatchesShortCircuitsBeforeCorruptTail(t *testing.T) {
	s := newTestSerializer(t)
	buf := xcodec.NewBuffer(0)
	require.NoError(t, s.codec.WriteDynamic(buf, "k"))
	buf.PutByte(0xff) // 损坏的 version 存在标记

	ok, err := s.Matches(buf, Entry{Key: "other"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Matches(buf, Entry{Key: "k", Value: "v"})
	assert.ErrorIs(t, err, xcodec.ErrCorrupt)
}

func TestSerializer_MatchesUnregisteredTemplate(t *testing.T) {
	s, err := NewSerializer(xcodec.New())
	require.NoError(t, err)
	p, err := s.EncodeBytes(NewEntry("k", "v"))
	require.NoError(t, err)
	buf := xcodec.NewBuffer(0)
	buf.Wrap(p)

	_, err = s.Matches(buf, Entry{Value: user{}})
	assert.ErrorIs(t, err, xcodec.ErrUnregisteredType)
}

func TestSerializer_NilBuffer(t *testing.T) {
	s := newTestSerializer(t)
	assert.ErrorIs(t, s.Encode(nil, Entry{}), ErrNilBuffer)
	_, err := s.Decode(nil)
	assert.ErrorIs(t, err, ErrNilBuffer)
	_, err = s.DecodeID(nil)
	assert.ErrorIs(t, err, ErrNilBuffer)
	_, err = s.Matches(nil, Entry{})
	assert.ErrorIs(t, err, ErrNilBuffer)
}

func TestSerializer_MatchesFloatsByValue(t *testing.T) {
	s := newTestSerializer(t)
	negZero := math.Copysign(0, -1)

	tests := []struct {
		name     string
		stored   any
		template any
		want     bool
	}{
		{"negative zero equals zero", negZero, 0.0, true},
		{"zero equals negative zero", 0.0, negZero, true},
		{"equal values", 1.5, 1.5, true},
		{"different values", 1.5, 2.5, false},
		{"NaN never matches", math.NaN(), math.NaN(), false},
		{"float32 negative zero", float32(negZero), float32(0), true},
		{"float32 template against float64 record", 1.5, float32(1.5), false},
		{"float template against string record", "1.5", 1.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := encode(t, s, NewEntry("k", tt.stored).WithRouting("r"))
			before := buf.Save()
			got, err := s.Matches(buf, Entry{Value: tt.template})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, buf.Save())
		})
	}

	// 浮点字段之后的字段仍从正确位置继续比较。
	buf := encode(t, s, Entry{Key: "k", Routing: negZero, Value: "v"})
	ok, err := s.Matches(buf, Entry{Routing: 0.0, Value: "v"})
	require.NoError(t, err)
	assert.True(t, ok)
}

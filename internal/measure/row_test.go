package measure

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowSetPreservesPosition(t *testing.T) {
	r := NewRow(3)
	r.Set("Name", Text("t1")).Set("Iterations", Int(10)).Set("Steps", Int(0))
	r.Set("Name", Text("t2"))

	assert.Equal(t, []string{"Name", "Iterations", "Steps"}, r.Keys())
	v, ok := r.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "t2", v.TextValue())
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := NewRow(1).Set("a", Int(1))
	c := r.Clone()
	c.Set("a", Int(2)).Set("b", Bool(true))

	v, _ := r.Get("a")
	assert.Equal(t, int64(1), v.Int())
	assert.False(t, r.Has("b"))
	assert.Equal(t, 2, c.Len())
}

func TestRowMarshalJSONKeepsOrder(t *testing.T) {
	r := NewRow(4).
		Set("z", Int(1)).
		Set("a", Float(0.5)).
		Set("m", Bool(false)).
		Set("e", Empty)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":0.5,"m":false,"e":null}`, string(b))
}

func TestColumnsUnionFirstSeen(t *testing.T) {
	rows := []*Row{
		NewRow(2).Set("a", Int(1)).Set("b", Text("x")),
		NewRow(2).Set("a", Int(22)).Set("c", Bool(true)),
		nil,
	}
	assert.Equal(t, []string{"a", "b", "c"}, Columns(rows))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"int", Int(-42), "-42"},
		{"float", Float(1.0 / 3.0), "0.333"},
		{"float rounds", Float(2.0006), "2.001"},
		{"bool", Bool(true), "true"},
		{"text", Text("has \"quotes\""), "has \"quotes\""},
		{"empty", Empty, ""},
		{"duration", Duration(1500 * time.Microsecond), "1500000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestOfMapsNaturalKinds(t *testing.T) {
	assert.Equal(t, KindEmpty, Of(nil).Kind())
	assert.Equal(t, KindInt, Of(7).Kind())
	assert.Equal(t, KindInt, Of(uint16(7)).Kind())
	assert.Equal(t, KindFloat, Of(float32(1.5)).Kind())
	assert.Equal(t, KindBool, Of(true).Kind())
	assert.Equal(t, KindText, Of("x").Kind())
	assert.Equal(t, KindInt, Of(time.Second).Kind())
	assert.Equal(t, "boom", Of(errors.New("boom")).TextValue())
	assert.Equal(t, "[1 2]", Of([]int{1, 2}).TextValue())
}

func TestOfKeepsLargeUnsignedExact(t *testing.T) {
	v := Of(uint64(math.MaxUint64))
	assert.Equal(t, KindText, v.Kind())
	assert.Equal(t, "18446744073709551615", Format(v))

	v = Of(uint64(math.MaxInt64))
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(math.MaxInt64), v.Int())

	assert.Equal(t, KindInt, Of(uint(42)).Kind())
}

func TestRightAligned(t *testing.T) {
	assert.True(t, Int(1).RightAligned())
	assert.True(t, Float(1).RightAligned())
	assert.True(t, Bool(false).RightAligned())
	assert.False(t, Text("1").RightAligned())
	assert.False(t, Empty.RightAligned())
}

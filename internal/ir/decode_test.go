package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	it, err := DecodeJSON([]byte(`{"n": 1, "f": 1.5, "s": "x", "a": [true, null]}`))
	require.NoError(t, err)

	obj, ok := it.(Object)
	require.True(t, ok)
	assert.Equal(t, Int(1), obj["n"])
	assert.Equal(t, Double(1.5), obj["f"])
	assert.Equal(t, String("x"), obj["s"])
	assert.Equal(t, Array{Bool(true), Null{}}, obj["a"])
}

func TestDecodeJSONTrailingData(t *testing.T) {
	_, err := DecodeJSON([]byte(`1 2`))
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	it, err := DecodeYAML([]byte("name: widget\ntags: [a, b]\nqty: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, Object{
		"name": String("widget"),
		"tags": Array{String("a"), String("b")},
		"qty":  Int(3),
	}, it)
}

func TestSequenceFromGo(t *testing.T) {
	seq, err := SequenceFromGo([]any{1, "a"})
	require.NoError(t, err)
	assert.Equal(t, Sequence{Int(1), String("a")}, seq)

	seq, err = SequenceFromGo("solo")
	require.NoError(t, err)
	assert.Equal(t, Strings("solo"), seq)
}

func TestToGoRoundTrip(t *testing.T) {
	orig := Object{"a": Array{Int(1), Double(2.5), Null{}}, "b": Bool(false)}
	back, err := FromGo(ToGo(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

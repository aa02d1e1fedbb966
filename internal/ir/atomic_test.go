package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomize(t *testing.T) {
	seq, err := Atomize(Sequence{Int(1), Array{String("a"), Array{Int(2)}}})
	require.NoError(t, err)
	assert.Equal(t, Sequence{Int(1), String("a"), Int(2)}, seq)

	_, err = Atomize(Sequence{Object{"a": Int(1)}})
	assert.ErrorIs(t, err, ErrNotAtomizable)
}

func TestEffectiveBooleanValue(t *testing.T) {
	tests := []struct {
		name    string
		seq     Sequence
		want    bool
		wantErr bool
	}{
		{"empty", nil, false, false},
		{"true", Sequence{Bool(true)}, true, false},
		{"zero", Ints(0), false, false},
		{"nonzero", Ints(7), true, false},
		{"empty string", Strings(""), false, false},
		{"string", Strings("x"), true, false},
		{"nan", Sequence{Double(math.NaN())}, false, false},
		{"object first", Sequence{Object{}, Int(1)}, true, false},
		{"two atomics", Ints(1, 2), false, true},
		{"null", Sequence{Null{}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EffectiveBooleanValue(tt.seq)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoEffectiveBooleanValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Item
		want    int
		wantErr bool
	}{
		{"ints", Int(1), Int(2), -1, false},
		{"int double", Int(2), Double(1.5), 1, false},
		{"strings", String("b"), String("a"), 1, false},
		{"bools", Bool(false), Bool(true), -1, false},
		{"nulls", Null{}, Null{}, 0, false},
		{"string int", String("1"), Int(1), 0, true},
		{"null int", Null{}, Int(1), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIncomparable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqual(t *testing.T) {
	eq, err := Equal(Null{}, Int(1), nil)
	require.NoError(t, err)
	assert.False(t, eq)

	eq, err = Equal(Int(3), Double(3), nil)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(Double(math.NaN()), Double(math.NaN()), nil)
	require.NoError(t, err)
	assert.False(t, eq)

	_, err = Equal(String("a"), Int(1), nil)
	assert.Error(t, err)
}

func TestDeepEqual(t *testing.T) {
	assert.True(t, DeepEqual(Ints(1, 2), Sequence{Int(1), Double(2)}, nil))
	assert.False(t, DeepEqual(Ints(1), Strings("1"), nil))
	assert.True(t, DeepEqual(Sequence{Double(math.NaN())}, Sequence{Double(math.NaN())}, nil))
	assert.True(t, DeepEqual(
		Sequence{Object{"a": Array{Int(1)}}},
		Sequence{Object{"a": Array{Int(1)}}}, nil))
	assert.False(t, DeepEqual(Ints(1), Ints(1, 1), nil))
}

func TestLookupCollation(t *testing.T) {
	coll, err := LookupCollation("")
	require.NoError(t, err)
	assert.Equal(t, CodepointCollationURI, coll.URI())
	assert.Equal(t, -1, coll.Compare("B", "a"))

	uca, err := LookupCollation(UCACollationPrefix + "?lang=en")
	require.NoError(t, err)
	assert.Equal(t, -1, uca.Compare("a", "B"))

	primary, err := LookupCollation(UCACollationPrefix + "?lang=en;strength=primary")
	require.NoError(t, err)
	assert.Equal(t, 0, primary.Compare("a", "A"))

	_, err = LookupCollation("http://example.com/nope")
	assert.ErrorIs(t, err, ErrUnknownCollation)
}

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryKeyStable(t *testing.T) {
	a := QueryKey("for $x in 1 to 3 return $x", "pull", "optimize")
	b := QueryKey("for $x in 1 to 3 return $x", "pull", "optimize")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, QueryKey("for $x in 1 to 3 return $x", "push", "optimize"))
	// Settings are separated, so shifting bytes between them changes the key
	assert.NotEqual(t, QueryKey("q", "ab", "c"), QueryKey("q", "a", "bc"))
}

func TestKeyHashNumericEquivalence(t *testing.T) {
	assert.Equal(t, KeyHash(Ints(1), nil), KeyHash(Sequence{Double(1)}, nil))
	assert.NotEqual(t, KeyHash(Ints(1), nil), KeyHash(Ints(2), nil))
	assert.NotEqual(t, KeyHash(Ints(1), nil), KeyHash(Strings("1"), nil))
}

func TestKeyHashComposite(t *testing.T) {
	ab := KeyHash(Strings("a", "b"), nil)
	assert.Equal(t, ab, KeyHash(Strings("a", "b"), nil))
	assert.NotEqual(t, ab, KeyHash(Strings("ab"), nil))
	assert.NotEqual(t, ab, KeyHash(Strings("b", "a"), nil))
}

func TestKeyHashCollationBuckets(t *testing.T) {
	coll, err := LookupCollation(UCACollationPrefix + "?strength=primary")
	assert.NoError(t, err)
	// Case-insensitive collation must bucket "a" and "A" together
	assert.Equal(t, KeyHash(Strings("a"), coll), KeyHash(Strings("A"), coll))
}

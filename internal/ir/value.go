package ir

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Item is a sealed interface representing one item of a sequence.
// Only Null, String, Int, Double, Bool, Array, and Object implement it.
type Item interface {
	item() // Sealed - only these types implement it
}

// Sequence is an ordered list of items. Sequences never nest: a sequence
// appended to a sequence is flattened.
type Sequence []Item

// Null represents a JSON null item.
type Null struct{}

func (Null) item() {}

// String represents an xs:string item.
type String string

func (String) item() {}

// Int represents an xs:integer item. Always int64.
type Int int64

func (Int) item() {}

// Double represents an xs:double item.
type Double float64

func (Double) item() {}

// Bool represents an xs:boolean item.
type Bool bool

func (Bool) item() {}

// Array represents an array of items (JSON array). Members are single items;
// constructors flatten member sequences.
type Array []Item

func (Array) item() {}

// Object represents a string-keyed map of items (JSON object).
// Use SortedKeys() for deterministic iteration.
type Object map[string]Item

func (Object) item() {}

// Singleton returns a one-item sequence, or the empty sequence for nil.
func Singleton(it Item) Sequence {
	if it == nil {
		return nil
	}
	return Sequence{it}
}

// Pair represents a key-value pair for typed Object construction.
type Pair struct {
	Key   string
	Value Item
}

// O is a shorthand for Pair.
// Example: NewObject(O("name", String("cart")), O("count", Int(5)))
func O(key string, value Item) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject creates an Object from key-value pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// Ints builds a sequence of Int items. Handy in tests.
func Ints(vals ...int64) Sequence {
	seq := make(Sequence, len(vals))
	for i, v := range vals {
		seq[i] = Int(v)
	}
	return seq
}

// Strings builds a sequence of String items.
func Strings(vals ...string) Sequence {
	seq := make(Sequence, len(vals))
	for i, v := range vals {
		seq[i] = String(v)
	}
	return seq
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sortKeysRFC8785(keys)
	return keys
}

func sortKeysRFC8785(keys []string) {
	slices.SortFunc(keys, compareKeysRFC8785)
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// TypeName returns the XDM type name of an item, as used in error messages
// and by SequenceType matching.
func TypeName(it Item) string {
	switch it.(type) {
	case Null:
		return "js:null"
	case String:
		return "xs:string"
	case Int:
		return "xs:integer"
	case Double:
		return "xs:double"
	case Bool:
		return "xs:boolean"
	case Array:
		return "array(*)"
	case Object:
		return "map(*)"
	case nil:
		return "empty-sequence()"
	default:
		return fmt.Sprintf("%T", it)
	}
}

// StringValue returns the string value of an atomic item, the way fn:string
// renders it. Arrays and objects render as canonical JSON.
func StringValue(it Item) string {
	switch v := it.(type) {
	case Null:
		return "null"
	case String:
		return string(v)
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Double:
		return formatDouble(float64(v))
	case Bool:
		if v {
			return "true"
		}
		return "false"
	case Array, Object:
		b, err := MarshalCanonical(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return ""
	}
}

// formatDouble renders doubles the way XPath casts xs:double to xs:string for
// the common range: integral values print without a fraction.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String renders a sequence for diagnostics: items are space separated and
// strings are quoted.
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, it := range s {
		if str, ok := it.(String); ok {
			parts[i] = strconv.Quote(string(str))
			continue
		}
		parts[i] = StringValue(it)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// IsNumeric reports whether the item is an Int or a Double.
func IsNumeric(it Item) bool {
	switch it.(type) {
	case Int, Double:
		return true
	}
	return false
}

// ToFloat converts a numeric item to float64.
func ToFloat(it Item) (float64, bool) {
	switch v := it.(type) {
	case Int:
		return float64(v), true
	case Double:
		return float64(v), true
	}
	return 0, false
}

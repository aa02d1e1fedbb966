package ir

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors returned by item operations. Callers in the expression
// layer map them to XQuery error codes.
var (
	// ErrNotAtomizable is returned when an object is atomized.
	ErrNotAtomizable = errors.New("item cannot be atomized")

	// ErrIncomparable is returned when two atomic items have no ordering.
	ErrIncomparable = errors.New("items are not comparable")

	// ErrNoEffectiveBooleanValue is returned when a sequence has no EBV.
	ErrNoEffectiveBooleanValue = errors.New("effective boolean value not defined")
)

// Atomize returns the typed values of a sequence. Arrays contribute their
// members (recursively); objects cannot be atomized.
func Atomize(seq Sequence) (Sequence, error) {
	needsWork := false
	for _, it := range seq {
		switch it.(type) {
		case Array, Object:
			needsWork = true
		}
	}
	if !needsWork {
		return seq, nil
	}

	out := make(Sequence, 0, len(seq))
	for _, it := range seq {
		var err error
		out, err = appendAtomized(out, it)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendAtomized(out Sequence, it Item) (Sequence, error) {
	switch v := it.(type) {
	case Array:
		for _, m := range v {
			var err error
			out, err = appendAtomized(out, m)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case Object:
		return nil, fmt.Errorf("%w: %s", ErrNotAtomizable, TypeName(it))
	default:
		return append(out, it), nil
	}
}

// EffectiveBooleanValue computes the XPath effective boolean value of a
// sequence:
//   - empty sequence is false
//   - a sequence whose first item is an array or object is true
//   - a singleton boolean, string, or number follows its value
//   - anything else has no EBV (ErrNoEffectiveBooleanValue)
func EffectiveBooleanValue(seq Sequence) (bool, error) {
	if len(seq) == 0 {
		return false, nil
	}
	switch seq[0].(type) {
	case Array, Object:
		return true, nil
	}
	if len(seq) > 1 {
		return false, fmt.Errorf("%w: sequence of %d atomic items", ErrNoEffectiveBooleanValue, len(seq))
	}
	switch v := seq[0].(type) {
	case Bool:
		return bool(v), nil
	case String:
		return v != "", nil
	case Int:
		return v != 0, nil
	case Double:
		f := float64(v)
		return f != 0 && !math.IsNaN(f), nil
	case Null:
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", ErrNoEffectiveBooleanValue, TypeName(seq[0]))
}

// Compare orders two atomic items. Integers and doubles compare numerically,
// strings use the collation (codepoint when nil), booleans order false before
// true, and null equals only null. Any other pairing returns ErrIncomparable.
//
// A NaN operand yields 0. Callers that need NaN semantics (comparison
// operators, order by) check IsNaN first.
func Compare(a, b Item, coll Collation) (int, error) {
	if coll == nil {
		coll = CodepointCollation
	}
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return cmpOrdered(av, bv), nil
		case Double:
			return cmpOrdered(float64(av), float64(bv)), nil
		}
	case Double:
		switch bv := b.(type) {
		case Int:
			return cmpOrdered(float64(av), float64(bv)), nil
		case Double:
			return cmpOrdered(float64(av), float64(bv)), nil
		}
	case String:
		if bv, ok := b.(String); ok {
			return coll.Compare(string(av), string(bv)), nil
		}
	case Bool:
		if bv, ok := b.(Bool); ok {
			return cmpOrdered(boolRank(bool(av)), boolRank(bool(bv))), nil
		}
	case Null:
		if _, ok := b.(Null); ok {
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, TypeName(a), TypeName(b))
}

// Equal reports value equality of two atomic items. Unlike Compare, null
// against a non-null item is simply unequal rather than an error.
func Equal(a, b Item, coll Collation) (bool, error) {
	_, aNull := a.(Null)
	_, bNull := b.(Null)
	if aNull || bNull {
		return aNull && bNull, nil
	}
	if isNaN(a) || isNaN(b) {
		return false, nil
	}
	c, err := Compare(a, b, coll)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// DeepEqual compares two sequences item by item, the way grouping keys and
// fn:deep-equal compare. Incomparable atomic pairs are unequal, not errors.
func DeepEqual(a, b Sequence, coll Collation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !deepEqualItem(a[i], b[i], coll) {
			return false
		}
	}
	return true
}

func deepEqualItem(a, b Item, coll Collation) bool {
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualItem(av[i], bv[i], coll) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !deepEqualItem(v, w, coll) {
				return false
			}
		}
		return true
	}
	if isNaN(a) && isNaN(b) {
		return true
	}
	eq, err := Equal(a, b, coll)
	return err == nil && eq
}

// IsNaN reports whether the item is a Double NaN.
func IsNaN(it Item) bool {
	return isNaN(it)
}

func isNaN(it Item) bool {
	d, ok := it.(Double)
	return ok && math.IsNaN(float64(d))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T int | Int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

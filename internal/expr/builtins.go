package expr

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/roach88/flwor/internal/ir"
)

var (
	anyAtomicOpt  = ir.NewSequenceType(ir.AnyAtomic, ir.ZeroOrOne)
	anyAtomicMany = ir.NewSequenceType(ir.AnyAtomic, ir.ZeroOrMore)
	numericOne    = ir.NewSequenceType(ir.DoubleType, ir.ExactlyOne)
	numericOpt    = ir.NewSequenceType(ir.DoubleType, ir.ZeroOrOne)
	stringOpt     = ir.NewSequenceType(ir.StringType, ir.ZeroOrOne)
)

// DefaultLibrary returns a new library holding the built-in functions.
func DefaultLibrary() *Library {
	lib := NewLibrary()
	for _, fn := range builtins() {
		if err := lib.Register(fn); err != nil {
			Internalf("builtin %s: %v", fn.Name, err)
		}
	}
	return lib
}

func builtins() []*Function {
	return []*Function{
		{Name: "true", Result: ir.SingleBoolean, Impl: constBool(true)},
		{Name: "false", Result: ir.SingleBoolean, Impl: constBool(false)},
		{Name: "not", MinArgs: 1, MaxArgs: 1, Result: ir.SingleBoolean, Impl: fnNot},
		{Name: "boolean", MinArgs: 1, MaxArgs: 1, Result: ir.SingleBoolean, Impl: fnBoolean},
		{Name: "exists", MinArgs: 1, MaxArgs: 1, Result: ir.SingleBoolean, Impl: fnExists},
		{Name: "empty", MinArgs: 1, MaxArgs: 1, Result: ir.SingleBoolean, Impl: fnEmpty},
		{Name: "count", MinArgs: 1, MaxArgs: 1, Result: ir.SingleInteger, Impl: fnCount},
		{Name: "sum", MinArgs: 1, MaxArgs: 2, Result: numericOpt, Impl: fnSum},
		{Name: "avg", MinArgs: 1, MaxArgs: 1, Result: numericOpt, Impl: fnAvg},
		{Name: "min", MinArgs: 1, MaxArgs: 2, Result: anyAtomicOpt, Impl: minMax(-1)},
		{Name: "max", MinArgs: 1, MaxArgs: 2, Result: anyAtomicOpt, Impl: minMax(1)},
		{Name: "abs", MinArgs: 1, MaxArgs: 1, Result: numericOpt, Impl: rounding(math.Abs)},
		{Name: "floor", MinArgs: 1, MaxArgs: 1, Result: numericOpt, Impl: rounding(math.Floor)},
		{Name: "ceiling", MinArgs: 1, MaxArgs: 1, Result: numericOpt, Impl: rounding(math.Ceil)},
		{Name: "round", MinArgs: 1, MaxArgs: 1, Result: numericOpt, Impl: rounding(roundHalfUp)},
		{Name: "number", MinArgs: 1, MaxArgs: 1, Result: numericOne, Impl: fnNumber},
		{Name: "string", Result: ir.SingleString, Focus: DepContextItem, Impl: fnString},
		{Name: "string", MinArgs: 1, MaxArgs: 1, Result: ir.SingleString, Impl: fnString},
		{Name: "string-length", MinArgs: 1, MaxArgs: 1, Result: ir.SingleInteger, Impl: fnStringLength},
		{Name: "concat", MinArgs: 2, MaxArgs: -1, Result: ir.SingleString, Impl: fnConcat},
		{Name: "string-join", MinArgs: 1, MaxArgs: 2, Result: ir.SingleString, Impl: fnStringJoin},
		{Name: "upper-case", MinArgs: 1, MaxArgs: 1, Result: ir.SingleString, Impl: mapString(strings.ToUpper)},
		{Name: "lower-case", MinArgs: 1, MaxArgs: 1, Result: ir.SingleString, Impl: mapString(strings.ToLower)},
		{Name: "contains", MinArgs: 2, MaxArgs: 2, Result: ir.SingleBoolean, Impl: stringTest(strings.Contains)},
		{Name: "starts-with", MinArgs: 2, MaxArgs: 2, Result: ir.SingleBoolean, Impl: stringTest(strings.HasPrefix)},
		{Name: "ends-with", MinArgs: 2, MaxArgs: 2, Result: ir.SingleBoolean, Impl: stringTest(strings.HasSuffix)},
		{Name: "substring", MinArgs: 2, MaxArgs: 3, Result: ir.SingleString, Impl: fnSubstring},
		{Name: "distinct-values", MinArgs: 1, MaxArgs: 1, Result: anyAtomicMany, Impl: fnDistinctValues},
		{Name: "index-of", MinArgs: 2, MaxArgs: 2, Result: ir.NewSequenceType(ir.IntegerType, ir.ZeroOrMore), Impl: fnIndexOf},
		{Name: "deep-equal", MinArgs: 2, MaxArgs: 2, Result: ir.SingleBoolean, Impl: fnDeepEqual},
		{Name: "reverse", MinArgs: 1, MaxArgs: 1, Result: ir.AnySequence, Impl: fnReverse},
		{Name: "subsequence", MinArgs: 2, MaxArgs: 3, Result: ir.AnySequence, Impl: fnSubsequence},
		{Name: "head", MinArgs: 1, MaxArgs: 1, Result: ir.NewSequenceType(ir.AnyItem, ir.ZeroOrOne), Impl: fnHead},
		{Name: "tail", MinArgs: 1, MaxArgs: 1, Result: ir.AnySequence, Impl: fnTail},
		{Name: "data", MinArgs: 1, MaxArgs: 1, Result: anyAtomicMany, Impl: fnData},
		{Name: "zero-or-one", MinArgs: 1, MaxArgs: 1, Result: ir.NewSequenceType(ir.AnyItem, ir.ZeroOrOne), Impl: cardinality(ir.ZeroOrOne, ErrZeroOrOne)},
		{Name: "one-or-more", MinArgs: 1, MaxArgs: 1, Result: ir.NewSequenceType(ir.AnyItem, ir.OneOrMore), Impl: cardinality(ir.OneOrMore, ErrOneOrMore)},
		{Name: "exactly-one", MinArgs: 1, MaxArgs: 1, Result: ir.SingleItem, Impl: cardinality(ir.ExactlyOne, ErrExactlyOne)},
		{Name: "keys", MinArgs: 1, MaxArgs: 1, Result: ir.NewSequenceType(ir.StringType, ir.ZeroOrMore), Impl: fnKeys},
		{Name: "size", MinArgs: 1, MaxArgs: 1, Result: ir.SingleInteger, Impl: fnSize},
		{Name: "position", Result: ir.SingleInteger, Focus: DepPosition, Impl: fnPosition},
		{Name: "last", Result: ir.SingleInteger, Focus: DepLast, Impl: fnLast},
		{Name: "error", MaxArgs: 2, Result: ir.EmptySequence, NonDeterministic: true, Impl: fnError},
		{Name: CollectionFunction, MinArgs: 1, MaxArgs: 1, Result: ir.NewSequenceType(ir.MapType, ir.ZeroOrMore), Impl: collectionImpl},
	}
}

func boolSeq(b bool) ir.Sequence {
	return ir.Sequence{ir.Bool(b)}
}

func constBool(b bool) FunctionImpl {
	return func(*Context, []ir.Sequence, Location) (ir.Sequence, error) {
		return boolSeq(b), nil
	}
}

func fnNot(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	b, err := effectiveBooleanValue(args[0], loc)
	if err != nil {
		return nil, err
	}
	return boolSeq(!b), nil
}

func fnBoolean(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	b, err := effectiveBooleanValue(args[0], loc)
	if err != nil {
		return nil, err
	}
	return boolSeq(b), nil
}

func fnExists(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	return boolSeq(len(args[0]) > 0), nil
}

func fnEmpty(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	return boolSeq(len(args[0]) == 0), nil
}

func fnCount(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	return ir.Ints(int64(len(args[0]))), nil
}

// numericArgs atomizes a sequence and requires every item to be numeric.
func numericArgs(seq ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := Atomize(seq, loc)
	if err != nil {
		return nil, err
	}
	for _, a := range atoms {
		if !ir.IsNumeric(a) {
			return nil, DynamicError(ErrInvalidArgument, loc, "expected numbers, got %s", ir.TypeName(a))
		}
	}
	return atoms, nil
}

func sumOf(atoms ir.Sequence, loc Location) (ir.Item, error) {
	var acc ir.Item = ir.Int(0)
	for _, a := range atoms {
		var err error
		acc, err = Arith(OpAdd, acc, a, loc)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func fnSum(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := numericArgs(args[0], loc)
	if err != nil {
		return nil, err
	}
	if len(atoms) == 0 {
		if len(args) > 1 {
			return args[1], nil
		}
		return ir.Ints(0), nil
	}
	total, err := sumOf(atoms, loc)
	if err != nil {
		return nil, err
	}
	return ir.Sequence{total}, nil
}

func fnAvg(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := numericArgs(args[0], loc)
	if err != nil || len(atoms) == 0 {
		return nil, err
	}
	total, err := sumOf(atoms, loc)
	if err != nil {
		return nil, err
	}
	avg, err := Arith(OpDiv, total, ir.Int(int64(len(atoms))), loc)
	if err != nil {
		return nil, err
	}
	return ir.Sequence{avg}, nil
}

func minMax(sign int) FunctionImpl {
	return func(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
		atoms, err := Atomize(args[0], loc)
		if err != nil || len(atoms) == 0 {
			return nil, err
		}
		coll := ir.CodepointCollation
		if len(args) > 1 {
			uri, err := stringArg(args[1], loc)
			if err != nil {
				return nil, err
			}
			if coll, err = ir.LookupCollation(uri); err != nil {
				return nil, DynamicError(ErrUnsupportedCollation, loc, "%v", err)
			}
		}
		best := atoms[0]
		for _, a := range atoms[1:] {
			if ir.IsNaN(best) {
				break
			}
			if ir.IsNaN(a) {
				best = a
				continue
			}
			cmp, err := ir.Compare(a, best, coll)
			if err != nil {
				return nil, compareError(err, loc)
			}
			if cmp*sign > 0 {
				best = a
			}
		}
		return ir.Sequence{best}, nil
	}
}

func roundHalfUp(f float64) float64 {
	return math.Floor(f + 0.5)
}

func rounding(op func(float64) float64) FunctionImpl {
	return func(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
		atoms, err := numericArgs(args[0], loc)
		if err != nil || len(atoms) == 0 {
			return nil, err
		}
		if len(atoms) > 1 {
			return nil, DynamicError(ErrTypeMismatch, loc, "expected one number, got %d", len(atoms))
		}
		switch v := atoms[0].(type) {
		case ir.Int:
			return ir.Sequence{ir.Int(int64(op(float64(v))))}, nil
		default:
			f, _ := ir.ToFloat(v)
			return ir.Sequence{ir.Double(op(f))}, nil
		}
	}
}

func fnNumber(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := Atomize(args[0], loc)
	if err != nil {
		return nil, err
	}
	if len(atoms) != 1 {
		return ir.Sequence{ir.Double(math.NaN())}, nil
	}
	if f, ok := ir.ToFloat(atoms[0]); ok {
		return ir.Sequence{ir.Double(f)}, nil
	}
	if s, ok := atoms[0].(ir.String); ok {
		if it, err := ir.DecodeJSON([]byte(strings.TrimSpace(string(s)))); err == nil {
			if f, ok := ir.ToFloat(it); ok {
				return ir.Sequence{ir.Double(f)}, nil
			}
		}
	}
	return ir.Sequence{ir.Double(math.NaN())}, nil
}

// stringArg atomizes an optional single argument into a string; the empty
// sequence becomes "".
func stringArg(seq ir.Sequence, loc Location) (string, error) {
	atoms, err := Atomize(seq, loc)
	if err != nil {
		return "", err
	}
	switch len(atoms) {
	case 0:
		return "", nil
	case 1:
		return ir.StringValue(atoms[0]), nil
	}
	return "", DynamicError(ErrTypeMismatch, loc, "expected at most one item, got %d", len(atoms))
}

func fnString(c *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	var arg ir.Sequence
	if len(args) == 0 {
		f := c.Focus()
		if f == nil {
			return nil, DynamicError(ErrContextAbsent, loc, "context item is absent")
		}
		arg = ir.Sequence{f.Item}
	} else {
		arg = args[0]
	}
	if len(arg) == 1 {
		switch arg[0].(type) {
		case ir.Object, ir.Array:
			return ir.Strings(ir.StringValue(arg[0])), nil
		}
	}
	s, err := stringArg(arg, loc)
	if err != nil {
		return nil, err
	}
	return ir.Strings(s), nil
}

func fnStringLength(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	s, err := stringArg(args[0], loc)
	if err != nil {
		return nil, err
	}
	return ir.Ints(int64(utf8.RuneCountInString(s))), nil
}

func fnConcat(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	var b strings.Builder
	for _, a := range args {
		s, err := stringArg(a, loc)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return ir.Strings(b.String()), nil
}

func fnStringJoin(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := Atomize(args[0], loc)
	if err != nil {
		return nil, err
	}
	sep := ""
	if len(args) > 1 {
		if sep, err = stringArg(args[1], loc); err != nil {
			return nil, err
		}
	}
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = ir.StringValue(a)
	}
	return ir.Strings(strings.Join(parts, sep)), nil
}

func mapString(fn func(string) string) FunctionImpl {
	return func(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
		s, err := stringArg(args[0], loc)
		if err != nil {
			return nil, err
		}
		return ir.Strings(fn(s)), nil
	}
}

func stringTest(fn func(s, sub string) bool) FunctionImpl {
	return func(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
		s, err := stringArg(args[0], loc)
		if err != nil {
			return nil, err
		}
		sub, err := stringArg(args[1], loc)
		if err != nil {
			return nil, err
		}
		return boolSeq(fn(s, sub)), nil
	}
}

// numberArg reads a single numeric argument as float64.
func numberArg(seq ir.Sequence, loc Location) (float64, error) {
	atoms, err := numericArgs(seq, loc)
	if err != nil {
		return 0, err
	}
	if len(atoms) != 1 {
		return 0, DynamicError(ErrTypeMismatch, loc, "expected one number, got %d", len(atoms))
	}
	f, _ := ir.ToFloat(atoms[0])
	return f, nil
}

// window returns the 0-based [from, to) range selected by an XPath start
// position and optional length over n members.
func window(n int, start float64, length *float64) (int, int) {
	first := roundHalfUp(start)
	last := math.Inf(1)
	if length != nil {
		last = first + roundHalfUp(*length)
	}
	from := int(math.Max(first, 1)) - 1
	to := n
	if !math.IsInf(last, 1) && !math.IsNaN(last) {
		to = int(math.Min(last-1, float64(n)))
	}
	if math.IsNaN(first) || from >= n || to <= from {
		return 0, 0
	}
	return from, to
}

func optionalLength(args []ir.Sequence, loc Location) (*float64, error) {
	if len(args) < 3 {
		return nil, nil
	}
	l, err := numberArg(args[2], loc)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func fnSubstring(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	s, err := stringArg(args[0], loc)
	if err != nil {
		return nil, err
	}
	start, err := numberArg(args[1], loc)
	if err != nil {
		return nil, err
	}
	length, err := optionalLength(args, loc)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	from, to := window(len(runes), start, length)
	return ir.Strings(string(runes[from:to])), nil
}

func fnSubsequence(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	start, err := numberArg(args[1], loc)
	if err != nil {
		return nil, err
	}
	length, err := optionalLength(args, loc)
	if err != nil {
		return nil, err
	}
	from, to := window(len(args[0]), start, length)
	return args[0][from:to], nil
}

func fnDistinctValues(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := Atomize(args[0], loc)
	if err != nil {
		return nil, err
	}
	var out ir.Sequence
	seen := make(map[uint64][]ir.Item)
	for _, a := range atoms {
		key := ir.Sequence{a}
		h := ir.KeyHash(key, nil)
		dup := false
		for _, prev := range seen[h] {
			if ir.DeepEqual(ir.Sequence{prev}, key, nil) {
				dup = true
				break
			}
		}
		if !dup {
			seen[h] = append(seen[h], a)
			out = append(out, a)
		}
	}
	return out, nil
}

func fnIndexOf(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := Atomize(args[0], loc)
	if err != nil {
		return nil, err
	}
	target, err := Atomize(args[1], loc)
	if err != nil {
		return nil, err
	}
	if len(target) != 1 {
		return nil, DynamicError(ErrTypeMismatch, loc, "index-of search value must be one item")
	}
	var out ir.Sequence
	for i, a := range atoms {
		if eq, err := ir.Equal(a, target[0], nil); err == nil && eq {
			out = append(out, ir.Int(int64(i+1)))
		}
	}
	return out, nil
}

func fnDeepEqual(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	return boolSeq(ir.DeepEqual(args[0], args[1], nil)), nil
}

func fnReverse(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	in := args[0]
	out := make(ir.Sequence, len(in))
	for i, it := range in {
		out[len(in)-1-i] = it
	}
	return out, nil
}

func fnHead(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	if len(args[0]) == 0 {
		return nil, nil
	}
	return args[0][:1], nil
}

func fnTail(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	if len(args[0]) <= 1 {
		return nil, nil
	}
	return args[0][1:], nil
}

func fnData(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	return Atomize(args[0], loc)
}

func cardinality(occ ir.Occurrence, code ErrorCode) FunctionImpl {
	return func(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
		if !occ.Permits(len(args[0])) {
			return nil, DynamicError(code, loc, "sequence of %d items", len(args[0]))
		}
		return args[0], nil
	}
}

func fnKeys(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
	var out ir.Sequence
	seen := make(map[string]bool)
	for _, it := range args[0] {
		obj, ok := it.(ir.Object)
		if !ok {
			continue
		}
		for _, k := range obj.SortedKeys() {
			if !seen[k] {
				seen[k] = true
				out = append(out, ir.String(k))
			}
		}
	}
	return out, nil
}

func fnSize(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	if len(args[0]) != 1 {
		return nil, DynamicError(ErrTypeMismatch, loc, "size expects one array")
	}
	arr, ok := args[0][0].(ir.Array)
	if !ok {
		return nil, DynamicError(ErrTypeMismatch, loc, "size expects an array, got %s", ir.TypeName(args[0][0]))
	}
	return ir.Ints(int64(len(arr))), nil
}

func fnPosition(c *Context, _ []ir.Sequence, loc Location) (ir.Sequence, error) {
	f := c.Focus()
	if f == nil {
		return nil, DynamicError(ErrContextAbsent, loc, "context item is absent")
	}
	return ir.Ints(int64(f.Position)), nil
}

func fnLast(c *Context, _ []ir.Sequence, loc Location) (ir.Sequence, error) {
	f := c.Focus()
	if f == nil {
		return nil, DynamicError(ErrContextAbsent, loc, "context item is absent")
	}
	return ir.Ints(int64(f.Size)), nil
}

func fnError(_ *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	code := ErrUserError
	msg := "error() called"
	if len(args) > 0 && len(args[0]) > 0 {
		code = ErrorCode(ir.StringValue(args[0][0]))
	}
	if len(args) > 1 {
		s, err := stringArg(args[1], loc)
		if err != nil {
			return nil, err
		}
		msg = s
	}
	return nil, DynamicError(code, loc, "%s", msg)
}

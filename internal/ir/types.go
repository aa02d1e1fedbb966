package ir

import "fmt"

// ItemType is the item-type half of a SequenceType. The hierarchy is the
// small subset this engine needs:
//
//	item()
//	 ├── xs:anyAtomicType
//	 │    ├── xs:double ── xs:integer
//	 │    ├── xs:string
//	 │    ├── xs:boolean
//	 │    └── js:null
//	 ├── map(*)
//	 └── array(*)
type ItemType int

const (
	AnyItem ItemType = iota
	AnyAtomic
	DoubleType
	IntegerType
	StringType
	BooleanType
	NullType
	MapType
	ArrayType
)

var itemTypeNames = map[ItemType]string{
	AnyItem:     "item()",
	AnyAtomic:   "xs:anyAtomicType",
	DoubleType:  "xs:double",
	IntegerType: "xs:integer",
	StringType:  "xs:string",
	BooleanType: "xs:boolean",
	NullType:    "js:null",
	MapType:     "map(*)",
	ArrayType:   "array(*)",
}

func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

// ParseItemType resolves a type name as written in a query.
func ParseItemType(name string) (ItemType, bool) {
	switch name {
	case "xs:decimal", "xs:numeric", "xs:float":
		return DoubleType, true
	case "xs:int", "xs:long":
		return IntegerType, true
	}
	for t, n := range itemTypeNames {
		if n == name {
			return t, true
		}
	}
	return AnyItem, false
}

// parent returns the immediate supertype.
func (t ItemType) parent() ItemType {
	switch t {
	case IntegerType:
		return DoubleType
	case DoubleType, StringType, BooleanType, NullType:
		return AnyAtomic
	default:
		return AnyItem
	}
}

// Subsumes reports whether every instance of other is an instance of t.
func (t ItemType) Subsumes(other ItemType) bool {
	for {
		if other == t {
			return true
		}
		if other == AnyItem {
			return false
		}
		other = other.parent()
	}
}

// Matches reports whether an item is an instance of t.
func (t ItemType) Matches(it Item) bool {
	return t.Subsumes(ItemTypeOf(it))
}

// ItemTypeOf returns the most specific ItemType of an item.
func ItemTypeOf(it Item) ItemType {
	switch it.(type) {
	case Int:
		return IntegerType
	case Double:
		return DoubleType
	case String:
		return StringType
	case Bool:
		return BooleanType
	case Null:
		return NullType
	case Object:
		return MapType
	case Array:
		return ArrayType
	default:
		return AnyItem
	}
}

// CommonSupertype returns the most specific type subsuming both a and b.
func CommonSupertype(a, b ItemType) ItemType {
	for t := a; ; t = t.parent() {
		if t.Subsumes(b) {
			return t
		}
		if t == AnyItem {
			return AnyItem
		}
	}
}

// Occurrence is the cardinality half of a SequenceType.
type Occurrence int

const (
	ExactlyOne Occurrence = iota
	ZeroOrOne
	ZeroOrMore
	OneOrMore
	Empty
)

// AllowsZero reports whether the empty sequence is permitted.
func (o Occurrence) AllowsZero() bool {
	return o == ZeroOrOne || o == ZeroOrMore || o == Empty
}

// AllowsMany reports whether more than one item is permitted.
func (o Occurrence) AllowsMany() bool {
	return o == ZeroOrMore || o == OneOrMore
}

// Subsumes reports whether every count permitted by other is permitted by o.
func (o Occurrence) Subsumes(other Occurrence) bool {
	if other == Empty {
		return o.AllowsZero()
	}
	if o == Empty {
		return false
	}
	if other.AllowsZero() && !o.AllowsZero() {
		return false
	}
	if other.AllowsMany() && !o.AllowsMany() {
		return false
	}
	return true
}

// Permits reports whether a sequence of n items satisfies o.
func (o Occurrence) Permits(n int) bool {
	switch o {
	case Empty:
		return n == 0
	case ExactlyOne:
		return n == 1
	case ZeroOrOne:
		return n <= 1
	case OneOrMore:
		return n >= 1
	default:
		return true
	}
}

// Union returns the occurrence covering both o and other, as for the branches
// of a conditional.
func (o Occurrence) Union(other Occurrence) Occurrence {
	zero := o.AllowsZero() || other.AllowsZero()
	many := o.AllowsMany() || other.AllowsMany()
	if o == Empty && other == Empty {
		return Empty
	}
	switch {
	case zero && many:
		return ZeroOrMore
	case many:
		return OneOrMore
	case zero:
		return ZeroOrOne
	}
	return ExactlyOne
}

// Concat returns the occurrence of the concatenation of two sequences.
func (o Occurrence) Concat(other Occurrence) Occurrence {
	if o == Empty {
		return other
	}
	if other == Empty {
		return o
	}
	if !o.AllowsZero() || !other.AllowsZero() {
		return OneOrMore
	}
	return ZeroOrMore
}

func (o Occurrence) suffix() string {
	switch o {
	case ZeroOrOne:
		return "?"
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	}
	return ""
}

// SequenceType is an item type plus an occurrence indicator.
type SequenceType struct {
	Item       ItemType
	Occurrence Occurrence
}

// Common sequence types.
var (
	AnySequence   = SequenceType{Item: AnyItem, Occurrence: ZeroOrMore}
	EmptySequence = SequenceType{Item: AnyItem, Occurrence: Empty}
	SingleInteger = SequenceType{Item: IntegerType, Occurrence: ExactlyOne}
	SingleBoolean = SequenceType{Item: BooleanType, Occurrence: ExactlyOne}
	SingleString  = SequenceType{Item: StringType, Occurrence: ExactlyOne}
	SingleItem    = SequenceType{Item: AnyItem, Occurrence: ExactlyOne}
)

// NewSequenceType builds a SequenceType.
func NewSequenceType(item ItemType, occ Occurrence) SequenceType {
	return SequenceType{Item: item, Occurrence: occ}
}

func (s SequenceType) String() string {
	if s.Occurrence == Empty {
		return "empty-sequence()"
	}
	return s.Item.String() + s.Occurrence.suffix()
}

// Subsumes reports whether every sequence matching other also matches s.
func (s SequenceType) Subsumes(other SequenceType) bool {
	if other.Occurrence == Empty {
		return s.Occurrence.AllowsZero()
	}
	return s.Occurrence.Subsumes(other.Occurrence) && s.Item.Subsumes(other.Item)
}

// Matches reports whether a sequence is an instance of s.
func (s SequenceType) Matches(seq Sequence) bool {
	if !s.Occurrence.Permits(len(seq)) {
		return false
	}
	for _, it := range seq {
		if !s.Item.Matches(it) {
			return false
		}
	}
	return true
}

// WithOccurrence returns a copy of s with a different occurrence.
func (s SequenceType) WithOccurrence(o Occurrence) SequenceType {
	s.Occurrence = o
	return s
}

package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/zeebo/xxh3"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainQuery = "flwor/query/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryKey computes a stable identity for a query text plus the compile
// settings that affect the compiled plan. Used as the compiled-query cache key.
func QueryKey(text string, settings ...string) string {
	data := []byte(text)
	for _, s := range settings {
		data = append(data, 0x00)
		data = append(data, s...)
	}
	return hashWithDomain(DomainQuery, data)
}

// KeyHash hashes an atomized grouping key. Items equal under DeepEqual with
// the codepoint collation hash equally: integers and integral doubles share an
// encoding so that 1 and 1.0e0 land in the same bucket. Collation-sensitive
// string equality is resolved by the caller comparing bucket members.
func KeyHash(key Sequence, coll Collation) uint64 {
	h := xxh3.New()
	var scratch [9]byte
	for _, it := range key {
		switch v := it.(type) {
		case Int:
			scratch[0] = 'n'
			binary.LittleEndian.PutUint64(scratch[1:], math.Float64bits(float64(v)))
			h.Write(scratch[:])
		case Double:
			f := float64(v)
			if math.IsNaN(f) {
				f = math.NaN()
			}
			scratch[0] = 'n'
			binary.LittleEndian.PutUint64(scratch[1:], math.Float64bits(f))
			h.Write(scratch[:])
		case String:
			h.Write([]byte{'s'})
			// Collation-equal strings may differ in bytes; bucket by type only.
			if coll == nil || coll == CodepointCollation {
				h.WriteString(string(v))
				h.Write([]byte{0x00})
			}
		case Bool:
			if v {
				h.Write([]byte{'b', 1})
			} else {
				h.Write([]byte{'b', 0})
			}
		case Null:
			h.Write([]byte{'z'})
		default:
			b, err := MarshalCanonical(it)
			if err == nil {
				h.Write([]byte{'j'})
				h.Write(b)
			}
		}
	}
	return h.Sum64()
}

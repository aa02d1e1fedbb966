// Package ir provides the item model shared by every other package.
//
// This package contains value and type definitions only. All other internal
// packages import ir; ir imports nothing internal. This keeps the item model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Items are immutable once constructed; sequences may be shared freely
//   - A Sequence is a flat []Item, the empty sequence is len 0 (nil is fine)
//   - Object keys serialize in RFC 8785 order, never map iteration order
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     golden files and CLI JSON output
package ir

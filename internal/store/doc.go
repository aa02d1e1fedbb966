// Package store provides SQLite-backed storage for document collections.
//
// A collection is a named, ordered list of JSON documents. Queries read
// collections through collection("name") and, after pushdown, through
// SQL compiled by querysql.
//
// # Critical Patterns
//
// Storage Order
//   - Documents are numbered 1..n in the order they were loaded
//   - All queries MUST include: ORDER BY id ASC
//   - Query results therefore match the in-memory order of the collection
//
// Canonical Bodies
//   - Bodies are RFC 8785 canonical JSON (ir.MarshalCanonical)
//   - Reloading a collection yields byte-identical rows
//
// Atomic Loads
//   - CreateCollection replaces a collection inside one transaction
//   - Readers never observe a partially loaded collection
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

// Package testutil provides test utilities for TLC, including:
//   - Fixture timeline records and catalogs (fixtures.go)
//   - Miniredis helpers for queue unit tests (miniredis.go)
//
// None of the helpers require Docker; everything runs in-process.
package testutil

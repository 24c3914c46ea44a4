// Package testutil provides shared test helper utilities.
package testutil

// Ptr returns a pointer to v. It replaces the typed pointer helpers
// (boolPtr, strPtr, ...) that would otherwise be duplicated across test
// files.
func Ptr[T any](v T) *T { return &v }

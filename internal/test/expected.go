// Package test holds assertion helpers for the package tests.
package test

import "testing"

// ExpectEquality reports got != want as a test error.
func ExpectEquality[T comparable](t *testing.T, got T, want T) bool {
	t.Helper()
	if got == want {
		return true
	}
	t.Errorf("got %v want %v", got, want)
	return false
}

// succeeded interprets v: a bool stands for itself, a nil error or an
// untyped nil is a success, any other error a failure.
func succeeded(t *testing.T, v any) bool {
	t.Helper()
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return v
	case error:
		return v == nil
	}
	t.Fatalf("cannot judge a %T", v)
	return false
}

// ExpectSuccess fails the test unless v is true or a nil error.
func ExpectSuccess(t *testing.T, v any) bool {
	t.Helper()
	if !succeeded(t, v) {
		t.Errorf("want success, got %v", v)
		return false
	}
	return true
}

// ExpectFailure fails the test unless v is false or a non-nil error.
func ExpectFailure(t *testing.T, v any) bool {
	t.Helper()
	if succeeded(t, v) {
		t.Errorf("want failure, got %v", v)
		return false
	}
	return true
}

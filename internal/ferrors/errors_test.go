package ferrors

import (
	"errors"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient store error", NewStoreError("insert_image", errors.New("conn reset"), true), true},
		{"non-transient store error", NewStoreError("insert_image", errors.New("syntax"), false), false},
		{"unrelated error", errors.New("boom"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsTransient(c.err); got != c.want {
				t.Errorf("IsTransient() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := NewFetchError("get", "http://x/y.jpg", 404, errors.New("not found"))
	if !IsNotFound(notFound) {
		t.Error("expected 404 FetchError to be IsNotFound")
	}
	other := NewFetchError("get", "http://x/y.jpg", 500, errors.New("server error"))
	if IsNotFound(other) {
		t.Error("500 should not be IsNotFound")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("plain error should not be IsNotFound")
	}
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("root cause")
	err := NewDecodeError("jpeg.decode", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find wrapped cause")
	}
}

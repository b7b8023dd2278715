package errs

import (
	"errors"
	"testing"
)

func TestCodeString(t *testing.T) {
	cases := map[Code]string{
		OK:             "OK",
		DecodeFailed:   "DECODE_FAILED",
		WindowInvalid:  "WINDOW_INVALID",
		MPPInitFailed:  "MPP_INIT_FAILED",
		V4L2InitFailed: "V4L2_INIT_FAILED",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("Code(%d).String() = %q, want %q", code, got, want)
		}
	}
	if got := Code(999).String(); got != "UNKNOWN_ERROR" {
		t.Errorf("unknown code String() = %q, want UNKNOWN_ERROR", got)
	}
}

func TestWrapUnwrap(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(DecodeFailed, base)
	if !errors.Is(wrapped, base) {
		t.Errorf("errors.Is(wrapped, base) = false, want true")
	}
	if CodeOf(wrapped) != DecodeFailed {
		t.Errorf("CodeOf(wrapped) = %v, want DecodeFailed", CodeOf(wrapped))
	}
}

func TestCodeOfDefaults(t *testing.T) {
	if CodeOf(nil) != OK {
		t.Errorf("CodeOf(nil) = %v, want OK", CodeOf(nil))
	}
	if CodeOf(errors.New("unclassified")) != InitFailed {
		t.Errorf("CodeOf(unclassified) should default to InitFailed")
	}
}

func TestNewError(t *testing.T) {
	err := New(InvalidParam, "width %d invalid", -1)
	if err.Code != InvalidParam {
		t.Errorf("err.Code = %v, want InvalidParam", err.Code)
	}
	if err.Error() != "INVALID_PARAM: width -1 invalid" {
		t.Errorf("err.Error() = %q", err.Error())
	}
}

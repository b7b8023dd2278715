// Package errs defines the stable error taxonomy shared by the camera and
// player C-ABI surfaces. Every public entry point returns one of these codes
// (or wraps one in an error) rather than an ad-hoc error value, so that a
// cgo/C-ABI wrapper can expose a single stable numeric enum.
package errs

import "fmt"

// Code is a stable, numeric error code suitable for crossing a C-ABI
// boundary. Values never change once assigned.
type Code int

const (
	OK Code = iota
	InitFailed
	InvalidParam
	DeviceNotFound
	DeviceBusy
	NotSupported
	PipelineFailed
	MPPInitFailed
	V4L2InitFailed
	OutOfMemory
	DecodeFailed
	NotRunning
	NoDisplay
	WindowInvalid
)

var names = map[Code]string{
	OK:             "OK",
	InitFailed:     "INIT_FAILED",
	InvalidParam:   "INVALID_PARAM",
	DeviceNotFound: "DEVICE_NOT_FOUND",
	DeviceBusy:     "DEVICE_BUSY",
	NotSupported:   "NOT_SUPPORTED",
	PipelineFailed: "PIPELINE_FAILED",
	MPPInitFailed:  "MPP_INIT_FAILED",
	V4L2InitFailed: "V4L2_INIT_FAILED",
	OutOfMemory:    "OUT_OF_MEMORY",
	DecodeFailed:   "DECODE_FAILED",
	NotRunning:     "NOT_RUNNING",
	NoDisplay:      "NO_DISPLAY",
	WindowInvalid:  "WINDOW_INVALID",
}

// String returns the stable human-readable name of the code, matching the
// spec's enumerated error taxonomy.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN_ERROR"
}

// Error pairs a Code with a descriptive message. It implements the error
// interface and unwraps to nothing further: Code is the leaf of the
// taxonomy, not a wrapper over a lower-level error (use Wrap for that).
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error, preserving it for
// errors.Unwrap/errors.Is.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{code: code, err: err}
}

type wrapped struct {
	code Code
	err  error
}

func (w *wrapped) Error() string { return fmt.Sprintf("%s: %v", w.code, w.err) }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) Code() Code    { return w.code }

// CodeOf extracts the Code from err if it is an *Error or was produced by
// Wrap; otherwise it returns InitFailed as a conservative default for
// unclassified failures.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	switch e := err.(type) {
	case *Error:
		return e.Code
	case *wrapped:
		return e.code
	}
	return InitFailed
}

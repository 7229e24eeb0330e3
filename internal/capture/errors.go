package capture

import (
	"errors"
	"fmt"

	"github.com/example/xgrab/internal/frame"
	"github.com/example/xgrab/internal/pixfmt"
)

// Kind classifies capture failures. None of them is retried internally.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConnection means the display server could not be reached.
	KindConnection
	// KindRequest means the image request was rejected or got no reply.
	KindRequest
	// KindPixmapFormatNotFound means the reply depth has no pixmap format.
	KindPixmapFormatNotFound
	// KindUnsupportedDepth means no decoder exists for the reply depth.
	KindUnsupportedDepth
	// KindBufferConstruction means decoded bytes did not match the geometry.
	KindBufferConstruction
	// KindInvalidRegion means the requested rectangle was rejected before
	// contacting the server.
	KindInvalidRegion
	// KindUnsupported means no capture backend exists on this platform.
	KindUnsupported
)

var (
	ErrConnection           = errors.New("display connection failed")
	ErrRequest              = errors.New("image request failed")
	ErrPixmapFormatNotFound = errors.New("pixmap format not found")
	ErrInvalidRegion        = errors.New("invalid capture region")
	ErrUnsupported          = errors.New("capture not supported")
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindRequest:
		return "request"
	case KindPixmapFormatNotFound:
		return "pixmap format"
	case KindUnsupportedDepth:
		return "unsupported depth"
	case KindBufferConstruction:
		return "buffer construction"
	case KindInvalidRegion:
		return "invalid region"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindRequest:
		return ErrRequest
	case KindPixmapFormatNotFound:
		return ErrPixmapFormatNotFound
	case KindUnsupportedDepth:
		return pixfmt.ErrUnsupportedDepth
	case KindBufferConstruction:
		return frame.ErrBufferConstruction
	case KindInvalidRegion:
		return ErrInvalidRegion
	case KindUnsupported:
		return ErrUnsupported
	default:
		return nil
	}
}

// Error is returned by every capture operation.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("capture %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an Error against the sentinel of its Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// wrapError attaches op to err unless it already is an *Error. Decode
// failures are classified by their sentinel.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}
	switch {
	case errors.Is(err, pixfmt.ErrUnsupportedDepth):
		return newError(op, KindUnsupportedDepth, err)
	case errors.Is(err, frame.ErrBufferConstruction):
		return newError(op, KindBufferConstruction, err)
	case errors.Is(err, ErrPixmapFormatNotFound):
		return newError(op, KindPixmapFormatNotFound, err)
	}
	return newError(op, KindUnknown, err)
}

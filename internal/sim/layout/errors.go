package layout

import (
	"errors"
	"fmt"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

var (
	ErrInvalidRadius        = hexgrid.ErrInvalidRadius
	ErrInsufficientGridSize = errors.New("insufficient grid size")
	ErrUnreachableBorder    = errors.New("unreachable border")
	ErrBorderConflict       = errors.New("border conflict")
)

// Error is the typed failure of a generation call. Kind is one of the
// sentinels above; Param names the offending parameter.
type Error struct {
	Kind    error
	Param   string
	Value   int
	Segment int // -1 when not tied to a border segment
}

func (e *Error) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("%v: %s=%d (segment %d)", e.Kind, e.Param, e.Value, e.Segment)
	}
	return fmt.Sprintf("%v: %s=%d", e.Kind, e.Param, e.Value)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, param string, value, segment int) *Error {
	return &Error{Kind: kind, Param: param, Value: value, Segment: segment}
}

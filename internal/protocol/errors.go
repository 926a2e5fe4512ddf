package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Generation failures.
	ErrInvalidRadius     = "E_INVALID_RADIUS"
	ErrInsufficientGrid  = "E_INSUFFICIENT_GRID"
	ErrUnreachableBorder = "E_UNREACHABLE_BORDER"
	ErrBorderConflict    = "E_BORDER_CONFLICT"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrInvalidRadius:     {},
	ErrInsufficientGrid:  {},
	ErrUnreachableBorder: {},
	ErrBorderConflict:    {},
	ErrBadRequest:        {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

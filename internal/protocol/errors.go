package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// A replica received a vertex or chunk reference outside the valid grid.
	// Fatal: the stream is corrupted or out of order.
	ErrProtoViolation = "E_PROTO_VIOLATION"

	// Simulation layer.
	ErrOutOfBounds = "E_OUT_OF_BOUNDS"
	ErrInvalidTier = "E_INVALID_TIER"
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrConflict    = "E_CONFLICT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoViolation:  {},
	ErrOutOfBounds:     {},
	ErrInvalidTier:     {},
	ErrBadRequest:      {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

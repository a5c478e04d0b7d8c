package world

import (
	"encoding/json"
	"errors"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
)

// ErrorCode maps a command error onto its wire code so callers can return
// machine-readable failures. Anything unrecognized becomes E_INTERNAL.
func ErrorCode(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, terrain.ErrOutOfBounds):
		return protocol.ErrOutOfBounds
	case errors.Is(err, ErrNotBuildable):
		return protocol.ErrConflict
	case errors.Is(err, ErrUnknownSettlement):
		return protocol.ErrBadRequest
	case errors.Is(err, ErrProtocolViolation):
		return protocol.ErrProtoViolation
	case errors.Is(err, settlement.ErrInvalidTier):
		return protocol.ErrInvalidTier
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return protocol.ErrProtoBadRequest
	default:
		return protocol.ErrInternal
	}
}

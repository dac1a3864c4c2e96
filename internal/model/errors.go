package model

import "errors"

// Sentinel errors for programmatic checking via errors.Is, one per §7 error
// kind. Per-file/per-row failures are recorded as data (ParseResult.Status,
// swallowed unique violations) rather than returned as these — these are for
// the cases that must produce an RPC error response.
var (
	ErrIO         = errors.New("i/o error")
	ErrParse      = errors.New("parse error")
	ErrProtocol   = errors.New("protocol error")
	ErrSchema     = errors.New("schema error")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// ErrorKind classifies an error for the RPC layer's error field (§7).
type ErrorKind string

const (
	KindIO         ErrorKind = "io"
	KindParse      ErrorKind = "parse"
	KindProtocol   ErrorKind = "protocol"
	KindSchema     ErrorKind = "schema"
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindUnknown    ErrorKind = "unknown"
)

// ClassifyError maps an error wrapped with one of the sentinels above to its
// ErrorKind, for RPC responses that must report a kind alongside a message.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	case errors.Is(err, ErrSchema):
		return KindSchema
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindUnknown
	}
}

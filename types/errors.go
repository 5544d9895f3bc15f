package types

import "errors"

// Error kinds surfaced by the verification core. Failures wrap one of these,
// use errors.Is to classify.
var (
	ErrMalformedRecord        = errors.New("malformed record")
	ErrAddressMismatch        = errors.New("account owner or address mismatch")
	ErrGuardianSetUnavailable = errors.New("unknown or inactive guardian set")
	ErrInvalidSignatures      = errors.New("insufficient or invalid signatures")
	ErrSignatureSetMismatch   = errors.New("signature set mismatch")
	ErrInvalidGovernance      = errors.New("invalid governance action")
)

/*
ErrorKind returns short name of the error kind err wraps, "internal" when it
doesn't wrap any of the known kinds.
*/
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, ErrGuardianSetUnavailable):
		return "guardian_set_unavailable"
	case errors.Is(err, ErrInvalidSignatures):
		return "invalid_signatures"
	case errors.Is(err, ErrSignatureSetMismatch):
		return "signature_set_mismatch"
	case errors.Is(err, ErrInvalidGovernance):
		return "invalid_governance"
	default:
		return "internal"
	}
}

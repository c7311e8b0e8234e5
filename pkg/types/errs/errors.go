package errs

import "errors"

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrAlreadyClaimed   = errors.New("already claimed")
	ErrClaimLost        = errors.New("claim lost")
	ErrValidation       = errors.New("validation error")
	ErrMissingReference = errors.New("missing reference")
	ErrUnknownSource    = errors.New("unknown source")
)

// IsPermanent reports whether err can never succeed on retry.
// Validation failures and references to records that must already exist are permanent,
// anything else (network, pool, context deadline) is transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrMissingReference)
}

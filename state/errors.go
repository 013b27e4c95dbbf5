package state

import (
	"github.com/pkg/errors"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyFinalized  = errors.New("already finalized")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrGracePeriodActive = errors.New("grace period active")
	ErrVotingActive      = errors.New("voting active")
	ErrNotInCouncil      = errors.New("not in council")
	ErrInsufficientBond  = errors.New("insufficient bond")
	ErrNotResolved       = errors.New("proposal not resolved")

	ErrNonceInvalid = errors.New("nonce invalid")
	ErrSigInvalid   = errors.New("signature invalid")
)

package securedraw

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrUnauthorized         = errors.New("unauthorized access attempt")
	ErrInsufficientPool     = errors.New("not enough participants in pool")
	ErrStaleSeed            = errors.New("randomness already revealed or not yet committed")
	ErrNotResolved          = errors.New("randomness not resolved")
	ErrExpired              = errors.New("randomness expired")
	ErrArithmeticOverflow   = errors.New("arithmetic overflow")
	ErrSelectionStalled     = errors.New("selection stalled")
	ErrPoolCapacity         = errors.New("pool capacity exceeded")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrInvalidParticipant   = errors.New("invalid participant")
	ErrInvalidDrawSize      = errors.New("invalid number of winners")
	ErrEmptySeed            = errors.New("empty selection seed")
	ErrCommitmentPending    = errors.New("commitment pending")
	ErrRecordNotFound       = errors.New("record not found")
	ErrRecordExists         = errors.New("record already exists")
	ErrWrongRecordKind      = errors.New("wrong record kind")
	ErrUnknownRandomness    = errors.New("unknown randomness request")
	ErrInvalidReference     = errors.New("invalid randomness reference")
	ErrRequestExists        = errors.New("randomness request already exists")
	ErrStaleRequest         = errors.New("request slot outside the accepted window")
	ErrReplayedRequest      = errors.New("request nonce already used")
	ErrAuditMismatch        = errors.New("draw does not replay to recorded winners")

	// ErrAlreadyRevealed is the name the oracle protocol uses for a seed slot that is
	// not exactly one tick behind the clock.
	ErrAlreadyRevealed = ErrStaleSeed
)

package securedraw

import (
	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
)

// DefaultCommitmentTTL is the number of slots a commitment, or an unconsumed resolved
// value, stays live before it is read as uncommitted again.
const DefaultCommitmentTTL uint64 = 150

type CommitmentStatus uint8

const (
	Uncommitted CommitmentStatus = iota
	Committed
	Resolved
)

func (s CommitmentStatus) String() string {
	switch s {
	case Uncommitted:
		return "uncommitted"
	case Committed:
		return "committed"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Commitment tracks one authority's randomness request through commit and reveal.
//
// CommitSlot is the oracle seed slot bound at commit time and CommittedAt the clock tick
// at which the commit happened. CommitSlot is therefore one less than the clock at
// commit, not the clock itself; the reveal matches the oracle's seed slot against it.
// Value is only set while Resolved.
type Commitment struct {
	Authority   peer.ID          `json:"authority"`
	OracleRef   peer.ID          `json:"oracle_ref,omitempty"`
	CommitSlot  uint64           `json:"commit_slot,omitempty"`
	CommittedAt uint64           `json:"committed_at,omitempty"`
	ResolvedAt  uint64           `json:"resolved_at,omitempty"`
	TTL         uint64           `json:"ttl"`
	Status      CommitmentStatus `json:"status"`
	Value       []byte           `json:"value,omitempty"`
}

func NewCommitment(authority peer.ID, ttl uint64) Commitment {
	if ttl == 0 {
		ttl = DefaultCommitmentTTL
	}
	return Commitment{Authority: authority, TTL: ttl, Status: Uncommitted}
}

// Effective returns c as seen at slot now: a commitment left committed, or a resolved
// value left unconsumed, for TTL slots or more reads as uncommitted.
func (c Commitment) Effective(now uint64) Commitment {
	var since uint64
	switch c.Status {
	case Committed:
		since = c.CommittedAt
	case Resolved:
		since = c.ResolvedAt
	default:
		return c
	}
	if now >= since && now-since >= c.TTL {
		return c.reset()
	}
	return c
}

func (c Commitment) reset() Commitment {
	return NewCommitment(c.Authority, c.TTL)
}

func (c Commitment) authorize(caller peer.ID) error {
	if caller != c.Authority {
		return errors.Wrapf(ErrUnauthorized, "%s is not the commitment authority", caller)
	}
	return nil
}

// Commit binds the commitment to oracleRef. The oracle must have committed its
// randomness exactly one slot before now.
func (c Commitment) Commit(caller, oracleRef peer.ID, now, seedSlot uint64) (Commitment, error) {
	if err := c.authorize(caller); err != nil {
		return c, err
	}
	if err := checkID(oracleRef); err != nil {
		return c, errors.Wrapf(ErrInvalidReference, "%q: %v", oracleRef, err)
	}
	c = c.Effective(now)
	if c.Status != Uncommitted {
		return c, errors.Wrapf(ErrCommitmentPending, "commitment is %s", c.Status)
	}
	if now == 0 || seedSlot != now-1 {
		return c, errors.Wrapf(ErrStaleSeed, "oracle seed slot %d at clock %d", seedSlot, now)
	}
	c.OracleRef = oracleRef
	c.CommitSlot = seedSlot
	c.CommittedAt = now
	c.Status = Committed
	return c, nil
}

// Reveal resolves a committed request. resolve is only called once the commitment and
// the oracle seed slot have been checked; if it reports ErrNotResolved the commitment
// stays committed and the call can be retried.
func (c Commitment) Reveal(caller peer.ID, now, seedSlot uint64, resolve func() ([]byte, error)) (Commitment, []byte, error) {
	if err := c.authorize(caller); err != nil {
		return c, nil, err
	}
	c = c.Effective(now)
	if c.Status != Committed {
		return c, nil, errors.Wrapf(ErrExpired, "commitment is %s", c.Status)
	}
	if seedSlot != c.CommitSlot {
		return c, nil, errors.Wrapf(ErrExpired, "oracle seed slot %d does not match committed slot %d", seedSlot, c.CommitSlot)
	}
	value, err := resolve()
	if err != nil {
		return c, nil, err
	}
	if len(value) == 0 {
		return c, nil, errors.Wrap(ErrNotResolved, "oracle returned no value")
	}
	c.Value = append([]byte(nil), value...)
	c.ResolvedAt = now
	c.Status = Resolved
	return c, c.Value, nil
}

// Consume hands out the resolved value as a selection seed and resets the commitment
// so that the same value can never seed a second draw.
func (c Commitment) Consume(caller peer.ID, now uint64) (Commitment, Seed, error) {
	if err := c.authorize(caller); err != nil {
		return c, nil, err
	}
	c = c.Effective(now)
	if c.Status != Resolved {
		return c, nil, errors.Wrapf(ErrNotResolved, "commitment is %s", c.Status)
	}
	seed := Seed(c.Value).clone()
	return c.reset(), seed, nil
}

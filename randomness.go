package securedraw

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
)

// InitializeCommitment creates the uncommitted randomness record of authority.
func (s *Securedraw) InitializeCommitment(ctx context.Context, authority peer.ID) error {
	if err := checkID(authority); err != nil {
		return errors.Wrap(err, "invalid authority")
	}
	c := NewCommitment(authority, s.commitmentTTL)
	if err := s.create(ctx, CommitmentKey(authority), &record{Kind: commitmentRecord, Owner: authority, Commitment: &c}); err != nil {
		return err
	}
	logger.Infow("Initialized commitment", "authority", authority, "ttl", c.TTL)
	return nil
}

// Commitment returns the commitment of authority as seen at the current slot.
func (s *Securedraw) Commitment(ctx context.Context, authority peer.ID) (Commitment, error) {
	now, err := s.slot(ctx)
	if err != nil {
		return Commitment{}, err
	}
	rec, err := s.load(ctx, CommitmentKey(authority), commitmentRecord)
	if err != nil {
		return Commitment{}, err
	}
	return rec.Commitment.Effective(now), nil
}

// GenerateRandomness commits authority's record to the oracle request oracleRef. The
// oracle must have committed that request exactly one slot before the current one and
// must not have revealed it yet.
func (s *Securedraw) GenerateRandomness(ctx context.Context, authority, caller, oracleRef peer.ID) (_err error) {
	defer func() {
		s.metrics.commitments.WithLabelValues("generate", outcome(_err)).Inc()
	}()

	key := CommitmentKey(authority)
	return s.mutate(ctx, key, commitmentRecord, func(rec *record) error {
		now, err := s.slot(ctx)
		if err != nil {
			return err
		}
		if err := rec.Commitment.authorize(caller); err != nil {
			return err
		}
		seedSlot, err := s.oracle.SeedSlot(ctx, oracleRef)
		if err != nil {
			return err
		}
		next, err := rec.Commitment.Commit(caller, oracleRef, now, seedSlot)
		if err != nil {
			logger.Debugw("Commit rejected", "authority", authority, "slot", now, "seedSlot", seedSlot, "err", err)
			return err
		}
		// The request must still be sealed: nobody may commit to a value already seen.
		switch _, err := s.oracle.Resolve(ctx, oracleRef); {
		case err == nil:
			return errors.Wrapf(ErrAlreadyRevealed, "%s was revealed before the commit", oracleRef)
		case !errors.Is(err, ErrNotResolved):
			return err
		}
		rec.Commitment = &next
		logger.Infow("Committed to randomness", "authority", authority, "oracleRef", oracleRef, "slot", now, "seedSlot", seedSlot)
		return nil
	})
}

// GetRandomness reveals the value authority committed to. While the oracle has not
// revealed yet it fails with ErrNotResolved and the commitment is left as it was.
func (s *Securedraw) GetRandomness(ctx context.Context, authority, caller peer.ID) (_ []byte, _err error) {
	defer func() {
		s.metrics.commitments.WithLabelValues("reveal", outcome(_err)).Inc()
	}()

	var value []byte
	key := CommitmentKey(authority)
	err := s.mutate(ctx, key, commitmentRecord, func(rec *record) error {
		now, err := s.slot(ctx)
		if err != nil {
			return err
		}
		c := rec.Commitment.Effective(now)
		if err := c.authorize(caller); err != nil {
			return err
		}
		var seedSlot uint64
		if c.Status == Committed {
			seedSlot, err = s.oracle.SeedSlot(ctx, c.OracleRef)
			if errors.Is(err, ErrUnknownRandomness) {
				return errors.Wrapf(ErrExpired, "oracle no longer knows %s", c.OracleRef)
			}
			if err != nil {
				return err
			}
		}
		next, revealed, err := c.Reveal(caller, now, seedSlot, func() ([]byte, error) {
			return s.oracle.Resolve(ctx, c.OracleRef)
		})
		if err != nil {
			return err
		}
		rec.Commitment = &next
		value = revealed
		logger.Infow("Revealed randomness", "authority", authority, "oracleRef", c.OracleRef, "slot", now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

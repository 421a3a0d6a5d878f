package securedraw

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
)

// DrawResult describes a completed draw.
type DrawResult struct {
	DrawID  string
	PoolID  string
	Slot    uint64
	Seed    Seed
	Winners []peer.ID
}

// InitializePool creates an empty pool controlled by owner and returns its ID.
func (s *Securedraw) InitializePool(ctx context.Context, owner peer.ID, capacity int) (string, error) {
	if err := checkID(owner); err != nil {
		return "", errors.Wrap(err, "invalid pool owner")
	}
	pool, err := NewPool(capacity)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.create(ctx, PoolKey(id), &record{Kind: poolRecord, Owner: owner, Pool: &pool}); err != nil {
		return "", err
	}
	logger.Infow("Initialized pool", "pool", id, "owner", owner, "capacity", pool.Capacity)
	return id, nil
}

// SetParticipants replaces the whole membership of a pool.
func (s *Securedraw) SetParticipants(ctx context.Context, poolID string, caller peer.ID, participants []peer.ID) error {
	err := s.mutate(ctx, PoolKey(poolID), poolRecord, func(rec *record) error {
		if err := rec.authorize(caller); err != nil {
			return err
		}
		next, err := rec.Pool.WithParticipants(participants)
		if err != nil {
			return err
		}
		rec.Pool = &next
		return nil
	})
	if err != nil {
		return err
	}
	logger.Debugw("Set pool participants", "pool", poolID, "count", len(participants))
	return nil
}

func (s *Securedraw) Pool(ctx context.Context, poolID string) (Pool, error) {
	rec, err := s.load(ctx, PoolKey(poolID), poolRecord)
	if err != nil {
		return Pool{}, err
	}
	return *rec.Pool, nil
}

// DrawWinners narrows the pool down to k winners. The seed is the oracle value the
// caller resolved through its commitment; the draw consumes it, so the caller has to
// commit and reveal again before the next draw.
//
// The audit record is written once the ledger has committed the draw and is best
// effort: if writing it fails the draw still stands, the failure is logged and counted
// in securedraw_archive_failures_total, and Draws will not list it.
func (s *Securedraw) DrawWinners(ctx context.Context, poolID string, caller peer.ID, k int) (_ *DrawResult, _err error) {
	defer func() {
		s.metrics.draws.WithLabelValues(outcome(_err)).Inc()
	}()

	now, err := s.slot(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []peer.ID
	result := &DrawResult{
		DrawID: uuid.NewString(),
		PoolID: poolID,
		Slot:   now,
	}
	poolKey, commitmentKey := PoolKey(poolID), CommitmentKey(caller)
	err = s.ledger.Update(ctx, func(current [][]byte) ([][]byte, error) {
		prec, err := decodeRecord(poolKey, current[0], poolRecord)
		if err != nil {
			return nil, err
		}
		if err := prec.authorize(caller); err != nil {
			return nil, err
		}
		crec, err := decodeRecord(commitmentKey, current[1], commitmentRecord)
		if err != nil {
			return nil, errors.Wrap(err, "caller has no commitment")
		}
		commitment, value, err := crec.Commitment.Consume(caller, now)
		if err != nil {
			return nil, err
		}
		seed := ExpandSeed(value)
		pool, winners, err := prec.Pool.Draw(k, seed)
		if err != nil {
			return nil, err
		}
		candidates = prec.Pool.Members
		result.Seed = seed
		result.Winners = winners

		prec.Pool = &pool
		crec.Commitment = &commitment
		next := make([][]byte, 2)
		for i, rec := range []*record{prec, crec} {
			if next[i], err = rec.encode(); err != nil {
				return nil, err
			}
		}
		return next, nil
	}, poolKey, commitmentKey)
	if err != nil {
		logger.Warnw("Draw failed", "pool", poolID, "caller", caller, "winners", k, "err", err)
		return nil, err
	}

	s.metrics.winners.Observe(float64(len(result.Winners)))
	logger.Infow("Drew winners", "pool", poolID, "draw", result.DrawID, "slot", now, "winners", len(result.Winners))

	if err := s.archive.Record(DrawRecord{
		DrawID:     result.DrawID,
		PoolID:     poolID,
		Slot:       now,
		Seed:       result.Seed,
		Candidates: peerStrings(candidates),
		Winners:    peerStrings(result.Winners),
	}); err != nil {
		s.metrics.archiveFailures.Inc()
		logger.Errorw("Failed to archive draw", "pool", poolID, "draw", result.DrawID, "err", err)
	}
	return result, nil
}

// Draws returns the archived draws of a pool, oldest first.
func (s *Securedraw) Draws(poolID string) ([]DrawRecord, error) {
	if _, err := uuid.Parse(poolID); err != nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "invalid pool ID %q", poolID)
	}
	return s.archive.Draws(poolID)
}

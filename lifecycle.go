package securedraw

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Close deletes the record under key. Only its owner may close it; payer receives
// whatever the host ledger reserved for the record. Only the kind and owner of the
// record have to decode, so a record with a damaged body can still be closed.
func (s *Securedraw) Close(ctx context.Context, key string, caller, payer peer.ID) error {
	var kind recordKind
	err := s.ledger.Update(ctx, func(current [][]byte) ([][]byte, error) {
		h, err := decodeHeader(key, current[0])
		if err != nil {
			return nil, err
		}
		if caller != h.Owner {
			return nil, errors.Wrapf(ErrUnauthorized, "%s does not control this %s", caller, h.Kind)
		}
		kind = h.Kind
		return [][]byte{nil}, nil
	}, key)
	if err != nil {
		return err
	}
	logger.Infow("Closed record", "key", key, "kind", kind, "payer", payer)
	return nil
}

func (s *Securedraw) InitializeCounter(ctx context.Context, owner peer.ID) (string, error) {
	if err := checkID(owner); err != nil {
		return "", errors.Wrap(err, "invalid counter owner")
	}
	id := uuid.NewString()
	if err := s.create(ctx, CounterKey(id), &record{Kind: counterRecord, Owner: owner, Counter: &Counter{}}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Securedraw) Counter(ctx context.Context, id string) (uint8, error) {
	rec, err := s.load(ctx, CounterKey(id), counterRecord)
	if err != nil {
		return 0, err
	}
	return rec.Counter.Count, nil
}

func (s *Securedraw) Increment(ctx context.Context, id string, caller peer.ID) (uint8, error) {
	return s.updateCounter(ctx, id, caller, Counter.Increment)
}

func (s *Securedraw) Decrement(ctx context.Context, id string, caller peer.ID) (uint8, error) {
	return s.updateCounter(ctx, id, caller, Counter.Decrement)
}

func (s *Securedraw) SetCounter(ctx context.Context, id string, caller peer.ID, value uint8) (uint8, error) {
	return s.updateCounter(ctx, id, caller, func(c Counter) (Counter, error) {
		return c.Set(value), nil
	})
}

func (s *Securedraw) updateCounter(ctx context.Context, id string, caller peer.ID, op func(Counter) (Counter, error)) (uint8, error) {
	var count uint8
	err := s.mutate(ctx, CounterKey(id), counterRecord, func(rec *record) error {
		if err := rec.authorize(caller); err != nil {
			return err
		}
		next, err := op(*rec.Counter)
		if err != nil {
			return err
		}
		rec.Counter = &next
		count = next.Count
		return nil
	})
	return count, err
}

package securedraw

import (
	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
)

// MaxPoolCapacity bounds the number of participants a pool can hold.
const MaxPoolCapacity = 50

// Pool is the candidate list of a draw. A successful draw narrows Members down to the
// winners; everyone else is dropped.
type Pool struct {
	Capacity int       `json:"capacity"`
	Members  []peer.ID `json:"members"`
}

// NewPool returns an empty pool. A zero capacity selects MaxPoolCapacity.
func NewPool(capacity int) (Pool, error) {
	if capacity == 0 {
		capacity = MaxPoolCapacity
	}
	if capacity < 0 || capacity > MaxPoolCapacity {
		return Pool{}, errors.Wrapf(ErrPoolCapacity, "capacity must be between 1 and %d, got %d", MaxPoolCapacity, capacity)
	}
	return Pool{Capacity: capacity, Members: []peer.ID{}}, nil
}

// WithParticipants returns a copy of p whose membership is replaced by ids.
func (p Pool) WithParticipants(ids []peer.ID) (Pool, error) {
	if len(ids) > p.Capacity {
		return p, errors.Wrapf(ErrPoolCapacity, "%d participants exceed capacity %d", len(ids), p.Capacity)
	}
	seen := make(map[peer.ID]struct{}, len(ids))
	for _, id := range ids {
		if err := checkID(id); err != nil {
			return p, errors.Wrapf(ErrInvalidParticipant, "%q: %v", id, err)
		}
		if _, ok := seen[id]; ok {
			return p, errors.Wrapf(ErrDuplicateParticipant, "%s", id)
		}
		seen[id] = struct{}{}
	}
	members := make([]peer.ID, len(ids))
	copy(members, ids)
	return Pool{Capacity: p.Capacity, Members: members}, nil
}

// Draw selects k winners with seed and returns the narrowed pool alongside them.
// On error p is returned unchanged.
func (p Pool) Draw(k int, seed Seed) (Pool, []peer.ID, error) {
	winners, err := Select(p.Members, k, seed)
	if err != nil {
		return p, nil, err
	}
	members := make([]peer.ID, len(winners))
	copy(members, winners)
	return Pool{Capacity: p.Capacity, Members: members}, winners, nil
}

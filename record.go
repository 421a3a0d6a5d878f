package securedraw

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
)

type recordKind string

const (
	poolRecord       recordKind = "pool"
	commitmentRecord recordKind = "commitment"
	counterRecord    recordKind = "counter"
)

// record is the envelope every ledger entry is stored in. Owner is the signer allowed
// to mutate and close it.
type record struct {
	Kind       recordKind  `json:"kind"`
	Owner      peer.ID     `json:"owner"`
	Pool       *Pool       `json:"pool,omitempty"`
	Commitment *Commitment `json:"commitment,omitempty"`
	Counter    *Counter    `json:"counter,omitempty"`
}

// recordHeader is the part of a record needed to authorize closing it. It still
// decodes when the body does not.
type recordHeader struct {
	Kind  recordKind `json:"kind"`
	Owner peer.ID    `json:"owner"`
}

func PoolKey(id string) string {
	return string(poolRecord) + "/" + id
}

func CommitmentKey(authority peer.ID) string {
	return string(commitmentRecord) + "/" + authority.String()
}

func CounterKey(id string) string {
	return string(counterRecord) + "/" + id
}

// decodeRecord parses the payload stored under key. An empty kind accepts any record.
func decodeRecord(key string, payload []byte, kind recordKind) (*record, error) {
	if payload == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s", key)
	}
	var r record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, errors.Wrapf(err, "failed to decode record %s", key)
	}
	if kind != "" && r.Kind != kind {
		return nil, errors.Wrapf(ErrWrongRecordKind, "%s holds a %s, not a %s", key, r.Kind, kind)
	}
	switch {
	case r.Kind == poolRecord && r.Pool == nil,
		r.Kind == commitmentRecord && r.Commitment == nil,
		r.Kind == counterRecord && r.Counter == nil:
		return nil, errors.Newf("record %s has no %s body", key, r.Kind)
	}
	return &r, nil
}

func decodeHeader(key string, payload []byte) (*recordHeader, error) {
	if payload == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s", key)
	}
	var h recordHeader
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, errors.Wrapf(err, "failed to decode record header %s", key)
	}
	return &h, nil
}

// checkID fails unless id decodes back from its own string form. Every ID kept in a
// record has to, or the record could never be read again.
func checkID(id peer.ID) error {
	decoded, err := peer.Decode(id.String())
	if err != nil {
		return err
	}
	if decoded != id {
		return errors.Newf("%s does not round trip", id)
	}
	return nil
}

func (r *record) encode() ([]byte, error) {
	return json.Marshal(r)
}

func (r *record) authorize(caller peer.ID) error {
	if caller != r.Owner {
		return errors.Wrapf(ErrUnauthorized, "%s does not control this %s", caller, r.Kind)
	}
	return nil
}

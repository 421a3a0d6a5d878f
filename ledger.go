package securedraw

import (
	"context"
)

// Txn computes the next payloads of a set of records from their current ones. A nil
// current payload means the record does not exist; a nil next payload deletes it.
// Returning an error aborts the transaction without writing anything.
type Txn func(current [][]byte) (next [][]byte, err error)

// Ledger is the host platform's keyed record store. Update runs fn atomically over
// the given keys: no other Update touching any of them interleaves with it.
type Ledger interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, fn Txn, keys ...string) error
	Close() error
}

package securedraw

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

var _ Ledger = (*RedisLedger)(nil)

const redisUpdateAttempts = 16

// RedisLedger is a Ledger kept in Redis. Updates are optimistic WATCH/MULTI
// transactions, retried when another writer touched one of the watched keys.
type RedisLedger struct {
	rdb       *redis.Client
	namespace string
}

func NewRedisLedger(opts *redis.Options, namespace string) (*RedisLedger, error) {
	if namespace == "" {
		return nil, errors.New("namespace cannot be empty")
	}
	return &RedisLedger{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
	}, nil
}

func (l *RedisLedger) key(k string) string {
	return fmt.Sprintf("securedraw:%s:%s", l.namespace, k)
}

func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *RedisLedger) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := l.rdb.Get(ctx, l.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read record %s", key)
	}
	return value, nil
}

func (l *RedisLedger) Update(ctx context.Context, fn Txn, keys ...string) error {
	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = l.key(k)
	}

	txf := func(tx *redis.Tx) error {
		current := make([][]byte, len(rkeys))
		for i, k := range rkeys {
			value, err := tx.Get(ctx, k).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return errors.Wrapf(err, "failed to read record %s", keys[i])
			default:
				current[i] = value
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if len(next) != len(keys) {
			return errors.Newf("transaction returned %d records for %d keys", len(next), len(keys))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, k := range rkeys {
				if next[i] == nil {
					if current[i] != nil {
						pipe.Del(ctx, k)
					}
					continue
				}
				pipe.Set(ctx, k, next[i], 0)
			}
			return nil
		})
		return err
	}

	for range redisUpdateAttempts {
		err := l.rdb.Watch(ctx, txf, rkeys...)
		if errors.Is(err, redis.TxFailedErr) {
			logger.Debugw("Retrying contended ledger update", "keys", keys)
			continue
		}
		return err
	}
	return errors.Newf("ledger update on %v kept conflicting after %d attempts", keys, redisUpdateAttempts)
}

func (l *RedisLedger) Close() error {
	return l.rdb.Close()
}

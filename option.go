package securedraw

import (
	"time"

	"github.com/cockroachdb/errors"
)

type (
	options struct {
		httpServerListenAddr string
		storePath            string
		databasePath         string
		ledger               Ledger
		clock                Clock
		oracle               Oracle
		commitmentTTL        uint64
		requestWindow        uint64
	}
	Option func(*options) error
)

func newOptions(option ...Option) (*options, error) {
	opts := &options{
		httpServerListenAddr: "0.0.0.0:40090",
		storePath:            ".",
		commitmentTTL:        DefaultCommitmentTTL,
		requestWindow:        DefaultRequestWindow,
	}
	for _, configure := range option {
		if err := configure(opts); err != nil {
			return nil, err
		}
	}
	if opts.oracle == nil {
		return nil, errors.New("randomness oracle must be set")
	}
	if opts.clock == nil {
		opts.clock = WallClock{Genesis: time.Now(), SlotDuration: DefaultSlotDuration}
	}
	return opts, nil
}

func WithHTTPServerListenAddr(addr string) Option {
	return func(o *options) error {
		o.httpServerListenAddr = addr
		return nil
	}
}

// WithStorePath sets the directory draw records are archived under.
func WithStorePath(path string) Option {
	return func(o *options) error {
		o.storePath = path
		return nil
	}
}

// WithDatabasePath sets the DuckDB file of the default ledger. It is ignored when a
// ledger is given with WithLedger.
func WithDatabasePath(path string) Option {
	return func(o *options) error {
		o.databasePath = path
		return nil
	}
}

func WithLedger(ledger Ledger) Option {
	return func(o *options) error {
		if ledger == nil {
			return errors.New("ledger cannot be nil")
		}
		o.ledger = ledger
		return nil
	}
}

func WithClock(clock Clock) Option {
	return func(o *options) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		o.clock = clock
		return nil
	}
}

func WithOracle(oracle Oracle) Option {
	return func(o *options) error {
		if oracle == nil {
			return errors.New("oracle cannot be nil")
		}
		o.oracle = oracle
		return nil
	}
}

// WithCommitmentTTL sets how many slots a commitment may stay committed, or resolved
// but unconsumed, before it falls back to uncommitted.
func WithCommitmentTTL(slots uint64) Option {
	return func(o *options) error {
		if slots == 0 {
			return errors.New("commitment TTL must be at least one slot")
		}
		o.commitmentTTL = slots
		return nil
	}
}

// WithRequestWindow sets how many slots a signed HTTP request stays acceptable after
// the slot it was signed at.
func WithRequestWindow(slots uint64) Option {
	return func(o *options) error {
		if slots == 0 {
			return errors.New("request window must be at least one slot")
		}
		o.requestWindow = slots
		return nil
	}
}

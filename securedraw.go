package securedraw

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ipfs/go-log/v2"
)

var logger = log.Logger("securedraw")

type Securedraw struct {
	*options
	server  http.Server
	archive *Archive
	metrics *metrics
	replay  *replayGuard
}

func New(o ...Option) (*Securedraw, error) {
	var s Securedraw
	var err error
	if s.options, err = newOptions(o...); err != nil {
		return nil, err
	}
	slotDuration := DefaultSlotDuration
	if wc, ok := s.clock.(WallClock); ok && wc.SlotDuration > 0 {
		slotDuration = wc.SlotDuration
	}
	if s.replay, err = newReplayGuard(time.Duration(s.requestWindow+1) * slotDuration); err != nil {
		return nil, errors.Wrap(err, "creating replay guard")
	}
	if s.ledger == nil {
		if s.ledger, err = NewStore(s.databasePath); err != nil {
			_ = s.replay.Close()
			return nil, errors.Wrap(err, "creating ledger")
		}
	}
	s.archive, err = NewArchive(s.storePath)
	if err != nil {
		_ = s.replay.Close()
		_ = s.ledger.Close()
		return nil, errors.Wrap(err, "creating archive")
	}
	s.metrics = newMetrics()
	s.server = http.Server{
		Addr:    s.options.httpServerListenAddr,
		Handler: s.ServeMux(),
	}
	return &s, nil
}

func (s *Securedraw) Start(context.Context) error {
	listen, err := net.Listen("tcp", s.httpServerListenAddr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(listen); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("Server stopped unexpectedly.", "err", err)
		} else {
			logger.Info("Server stopped.")
		}
	}()
	logger.Infow("Securedraw started.", "addr", listen.Addr().String())
	return nil
}

func (s *Securedraw) Shutdown(ctx context.Context) (_err error) {
	defer func() {
		err := errors.CombineErrors(s.replay.Close(), s.ledger.Close())
		if _err == nil {
			_err = err
		}
	}()
	return s.server.Shutdown(ctx)
}

func (s *Securedraw) slot(ctx context.Context) (uint64, error) {
	slot, err := s.clock.Slot(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading clock")
	}
	return slot, nil
}

func (s *Securedraw) load(ctx context.Context, key string, kind recordKind) (*record, error) {
	payload, err := s.ledger.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(key, payload, kind)
}

// create stores rec under key, failing if anything is already there.
func (s *Securedraw) create(ctx context.Context, key string, rec *record) error {
	return s.ledger.Update(ctx, func(current [][]byte) ([][]byte, error) {
		if current[0] != nil {
			return nil, errors.Wrapf(ErrRecordExists, "%s", key)
		}
		payload, err := rec.encode()
		if err != nil {
			return nil, err
		}
		return [][]byte{payload}, nil
	}, key)
}

// mutate applies fn to the record under key within one ledger transaction.
func (s *Securedraw) mutate(ctx context.Context, key string, kind recordKind, fn func(*record) error) error {
	return s.ledger.Update(ctx, func(current [][]byte) ([][]byte, error) {
		rec, err := decodeRecord(key, current[0], kind)
		if err != nil {
			return nil, err
		}
		if err := fn(rec); err != nil {
			return nil, err
		}
		payload, err := rec.encode()
		if err != nil {
			return nil, err
		}
		return [][]byte{payload}, nil
	}, key)
}

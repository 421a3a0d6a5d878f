package securedraw

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry        *prometheus.Registry
	draws           *prometheus.CounterVec
	commitments     *prometheus.CounterVec
	winners         prometheus.Histogram
	archiveFailures prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		draws: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securedraw_draws_total",
				Help: "number of draw attempts by outcome",
			}, []string{
				"outcome",
			}),
		commitments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securedraw_commitment_transitions_total",
				Help: "number of commitment operations by operation and outcome",
			}, []string{
				"operation",
				"outcome",
			}),
		winners: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "securedraw_draw_winners",
			Help:    "number of winners selected per successful draw",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50},
		}),
	}
	m.archiveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "securedraw_archive_failures_total",
		Help: "number of completed draws whose audit record could not be written",
	})
	m.registry.MustRegister(m.draws, m.commitments, m.winners, m.archiveFailures)
	return m
}

var outcomes = []struct {
	err   error
	label string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrInsufficientPool, "insufficient_pool"},
	{ErrStaleSeed, "stale_seed"},
	{ErrNotResolved, "not_resolved"},
	{ErrExpired, "expired"},
	{ErrSelectionStalled, "selection_stalled"},
	{ErrCommitmentPending, "commitment_pending"},
	{ErrInvalidDrawSize, "invalid_draw_size"},
	{ErrRecordNotFound, "not_found"},
	{ErrInvalidReference, "invalid_reference"},
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

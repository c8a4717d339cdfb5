// Package ratelimit paces requests against the property portal.
// A Pacer belongs to exactly one pagination run; runs never share one.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultDelay is the pause between successful page fetches.
const DefaultDelay = 1 * time.Second

// Prometheus metrics for request pacing.
var (
	scrapePacingWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrape_pacing_waits_total",
		Help: "Total number of inter-page pauses taken",
	})

	scrapePacingSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrape_pacing_seconds_total",
		Help: "Total time spent pausing between page fetches",
	})
)

// Pacer applies a fixed pause between requests of one run.
type Pacer struct {
	delay  time.Duration
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	waits  int
	waited time.Duration
}

// NewPacer creates a pacer with the given fixed delay. A negative delay is
// treated as zero.
func NewPacer(delay time.Duration, logger zerolog.Logger) *Pacer {
	if delay < 0 {
		delay = 0
	}
	return &Pacer{
		delay:  delay,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Delay returns the configured pause.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Wait pauses for the configured delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.waits++
	if p.delay == 0 {
		return ctx.Err()
	}

	p.logger.Debug().
		Dur("delay", p.delay).
		Int("wait", p.waits).
		Msg("Pausing before next page")

	start := time.Now()
	err := p.sleep(ctx, p.delay)
	elapsed := time.Since(start)

	p.waited += elapsed
	scrapePacingWaitsTotal.Inc()
	scrapePacingSecondsTotal.Add(elapsed.Seconds())

	return err
}

// Waits returns how many times Wait was called.
func (p *Pacer) Waits() int {
	return p.waits
}

// Waited returns the total time spent pausing.
func (p *Pacer) Waited() time.Duration {
	return p.waited
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

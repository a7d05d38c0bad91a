// Package restarter implements a bounded retry loop: probe on a fixed
// interval up to a maximum number of attempts, firing a success or
// failure callback exactly once.
package restarter

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Restarter probes a condition on a fixed interval until it succeeds or
// the attempt budget is exhausted.
type Restarter struct {
	maxAttempts int
	interval    time.Duration
	probe       func() bool
	onSuccess   func()
	onFailure   func()
	log         *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   bool
}

// New builds a Restarter. probe is called at most maxAttempts times,
// interval apart; the first true return fires onSuccess, exhausting the
// budget without success fires onFailure. Neither callback fires more
// than once, and neither fires if Cancel is called first.
func New(maxAttempts int, interval time.Duration, probe func() bool, onSuccess, onFailure func(), log *logrus.Entry) *Restarter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Restarter{
		maxAttempts: maxAttempts,
		interval:    interval,
		probe:       probe,
		onSuccess:   onSuccess,
		onFailure:   onFailure,
		log:         log,
	}
}

// Start launches the probe loop in its own goroutine. Calling Start
// twice on the same Restarter is not supported.
func (r *Restarter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	go r.run(ctx)
}

// Cancel stops the probe loop; neither callback will fire afterward.
func (r *Restarter) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Restarter) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if r.probe() {
			r.fire(ctx, r.onSuccess)
			return
		}

		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	r.log.WithField("attempts", r.maxAttempts).Warn("restarter: exhausted attempt budget")
	r.fire(ctx, r.onFailure)
}

func (r *Restarter) fire(ctx context.Context, cb func()) {
	r.mu.Lock()
	already := r.done
	r.done = true
	r.mu.Unlock()
	if already || cb == nil {
		return
	}
	select {
	case <-ctx.Done():
		return
	default:
	}
	cb()
}

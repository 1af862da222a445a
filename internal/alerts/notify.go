package alerts

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nixlim/growwatch/internal/logger"
)

const (
	// maxPendingNotifications bounds the notification processes in flight.
	maxPendingNotifications = 4
	notificationTimeout     = 5 * time.Second
)

// NopNotifier drops every alert. Used when desktop notifications are
// disabled or unsupported on the platform.
type NopNotifier struct{}

// Notify is a no-op.
func (NopNotifier) Notify(Alert) {}

// notificationTitle is the first line shown by desktop notifiers.
func notificationTitle(a Alert) string {
	return fmt.Sprintf("growwatch: %s", a.Rule)
}

// notificationBody describes the sustained window in local time.
func notificationBody(a Alert) string {
	return fmt.Sprintf("Sustained from %s to %s (%s)",
		a.StartedAt.Local().Format("02/01 15:04"),
		a.FinishedAt.Local().Format("02/01 15:04"),
		a.Elapsed().Truncate(time.Minute))
}

// runner starts notification commands in the background, at most limit at
// a time. Alerts arriving while every slot is busy are dropped.
type runner struct {
	slots   chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	command func(ctx context.Context, name string, args ...string) error
}

func newRunner(limit int) *runner {
	return &runner{
		slots: make(chan struct{}, limit),
		command: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// start runs name in the background and reports false when it was dropped.
func (r *runner) start(rule, name string, args ...string) bool {
	select {
	case r.slots <- struct{}{}:
	default:
		r.dropped.Add(1)
		return false
	}

	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.slots
			r.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		if err := r.command(ctx, name, args...); err != nil {
			log := logger.WithComponent("notifier")
			log.Warn().Err(err).Str("rule", rule).Msg("failed to send desktop notification")
		}
	}()
	return true
}

// Dropped returns how many notifications were skipped because too many
// were already pending.
func (r *runner) Dropped() uint64 {
	return r.dropped.Load()
}

// Close waits for pending notification processes to finish.
func (r *runner) Close() error {
	r.wg.Wait()
	if n := r.dropped.Load(); n > 0 {
		log := logger.WithComponent("notifier")
		log.Warn().Uint64("dropped", n).Msg("desktop notifications dropped")
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"price-tracker/config"
	"price-tracker/internal/render"
	"price-tracker/internal/util"

	"go.uber.org/zap"
)

// SessionOpener starts a render session
type SessionOpener func(ctx context.Context) (render.Session, error)

// Runner owns the render session lifecycle around tracker runs
type Runner struct {
	tracker  *Tracker
	listings map[string]config.Listing
	open     SessionOpener
	logger   *zap.Logger
}

// NewRunner creates a new runner
func NewRunner(tracker *Tracker, listings map[string]config.Listing, open SessionOpener) *Runner {
	return &Runner{
		tracker:  tracker,
		listings: listings,
		open:     open,
		logger:   util.GetLogger(),
	}
}

// Listing returns the named listing configuration
func (r *Runner) Listing(name string) (config.Listing, bool) {
	l, ok := r.listings[name]
	return l, ok
}

// RunListing opens a session, runs the named listing within its timeout and
// releases the session on every exit path.
func (r *Runner) RunListing(ctx context.Context, name string, pageLimit int) (RunStats, error) {
	listing, ok := r.listings[name]
	if !ok {
		return RunStats{Listing: name}, fmt.Errorf("unknown listing %q", name)
	}

	if listing.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, listing.Timeout)
		defer cancel()
	}

	session, err := r.open(ctx)
	if err != nil {
		return RunStats{Listing: name}, fmt.Errorf("failed to start render session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("Failed to close render session", zap.Error(err))
		}
	}()

	stats, err := r.tracker.Run(ctx, session, listing, pageLimit)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		// Drivers report an expired deadline as their own cancel error.
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return stats, err
}

/*
scheduler.go - Background grid cache warmer

PURPOSE:
  Periodically reloads every scope's grid snapshot into the cache so quote
  requests rarely pay for a cold read, and so grid rows written outside
  this process (another instance, a direct import) become visible within
  one interval rather than one cache TTL.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Lists scopes from the store, warms each in turn
  - A failing scope is logged and skipped; the others still warm

CONFIGURATION:
  - Interval: How often to warm (GRID_WARM_INTERVAL, default: 1 minute)
  - Enabled: Whether the warmer is active (false when Interval is 0)

USAGE:
  warmer := NewGridWarmer(store, gridCache, logger)
  warmer.Start()
  // ... later
  warmer.Stop()

SEE ALSO:
  - store/cache/cache.go: Warm, the per-scope reload
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/commission-engine/commission"
)

// Warmer reloads one scope's snapshot.
type Warmer interface {
	Warm(ctx context.Context, scope commission.Scope) error
}

// GridWarmer keeps grid snapshots hot for every known scope.
type GridWarmer struct {
	Scopes   commission.ScopeLister
	Cache    Warmer
	Log      logrus.FieldLogger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex // guards ticker

	lastMu  sync.Mutex
	lastRun time.Time
}

// NewGridWarmer creates a warmer with a one-minute interval.
func NewGridWarmer(scopes commission.ScopeLister, cache Warmer, logger logrus.FieldLogger) *GridWarmer {
	return &GridWarmer{
		Scopes:   scopes,
		Cache:    cache,
		Log:      logger,
		Interval: time.Minute,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the warmer.
func (gw *GridWarmer) Start() {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if !gw.Enabled || gw.Interval <= 0 {
		gw.Log.Info("grid warmer disabled")
		return
	}

	gw.ticker = time.NewTicker(gw.Interval)
	gw.wg.Add(1)

	go gw.run()

	gw.Log.WithField("interval", gw.Interval.String()).Info("grid warmer started")
}

// Stop stops the warmer and waits for an in-flight pass to finish.
func (gw *GridWarmer) Stop() {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.ticker != nil {
		gw.ticker.Stop()
		close(gw.stop)
		gw.wg.Wait()
		gw.ticker = nil
		gw.Log.Info("grid warmer stopped")
	}
}

func (gw *GridWarmer) run() {
	defer gw.wg.Done()

	// Run immediately on start
	gw.RunNow()

	for {
		select {
		case <-gw.ticker.C:
			gw.RunNow()
		case <-gw.stop:
			return
		}
	}
}

// RunNow warms every scope once and returns how many succeeded.
func (gw *GridWarmer) RunNow() int {
	ctx, cancel := context.WithTimeout(context.Background(), gw.timeout())
	defer cancel()

	scopes, err := gw.Scopes.Scopes(ctx)
	if err != nil {
		gw.Log.WithError(err).Error("grid warmer: failed to list scopes")
		return 0
	}

	warmed := 0
	for _, scope := range scopes {
		if err := gw.Cache.Warm(ctx, scope); err != nil {
			gw.Log.WithError(err).WithField("scope", scope).Warn("grid warmer: failed to warm scope")
			continue
		}
		warmed++
	}

	gw.lastMu.Lock()
	gw.lastRun = time.Now()
	gw.lastMu.Unlock()

	gw.Log.WithFields(logrus.Fields{"scopes": len(scopes), "warmed": warmed}).Debug("grid warmer pass complete")
	return warmed
}

// LastRun returns when the last pass finished.
func (gw *GridWarmer) LastRun() time.Time {
	gw.lastMu.Lock()
	defer gw.lastMu.Unlock()
	return gw.lastRun
}

func (gw *GridWarmer) timeout() time.Duration {
	if gw.Interval > 0 {
		return gw.Interval
	}
	return time.Minute
}

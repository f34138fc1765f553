package ban

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"rondo/internal/metrics"
)

// Directory is the in-process cache of the durable ban list, built for
// lock-free lookups on the enforcement path. The whole snapshot is
// swapped atomically on refresh: readers see either the complete old
// state or the complete new state, never a partial merge. A failed
// refresh keeps the previous snapshot (availability over freshness).
type Directory struct {
	store    Store
	clock    clock.Clock
	interval time.Duration

	snapshot   atomic.Pointer[map[string]Record]
	invalidate chan struct{}
}

func NewDirectory(store Store, clk clock.Clock, interval time.Duration) *Directory {
	return &Directory{
		store:      store,
		clock:      clk,
		interval:   interval,
		invalidate: make(chan struct{}, 1),
	}
}

// Run refreshes on the configured interval and on Invalidate signals
// until ctx is cancelled. The first refresh happens immediately so the
// gate is usually populated before the first connection arrives.
func (d *Directory) Run(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		log.Printf("⚠️  Initial ban refresh failed: %v", err)
	}

	ticker := d.clock.Ticker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.invalidate:
		}
		if err := d.Refresh(ctx); err != nil {
			log.Printf("⚠️  Ban refresh failed, keeping previous snapshot: %v", err)
		}
	}
}

// Refresh pulls the full ban list and swaps the snapshot in one step.
func (d *Directory) Refresh(ctx context.Context) error {
	records, err := d.store.ListBans(ctx)
	if err != nil {
		metrics.BanRefreshTotal.WithLabelValues("error").Inc()
		return err
	}

	next := make(map[string]Record, len(records))
	for _, rec := range records {
		if rec.DeviceID == "" {
			log.Printf("⚠️  Skipping ban record with empty device id")
			continue
		}
		if rec.Banned {
			next[rec.DeviceID] = rec
		}
	}

	d.snapshot.Store(&next)
	metrics.BanRefreshTotal.WithLabelValues("ok").Inc()
	metrics.BannedDevices.Set(float64(len(next)))
	return nil
}

// Invalidate requests an out-of-band refresh. Non-blocking; coalesces
// with a refresh already pending.
func (d *Directory) Invalidate() {
	select {
	case d.invalidate <- struct{}{}:
	default:
	}
}

// Initialized reports whether at least one refresh has succeeded since
// startup. Until then IsBanned answers are meaningless and the gate
// applies its fail policy instead.
func (d *Directory) Initialized() bool {
	return d.snapshot.Load() != nil
}

// IsBanned is a pure lookup against the current snapshot. Unknown
// devices are not banned.
func (d *Directory) IsBanned(deviceID string) bool {
	snap := d.snapshot.Load()
	if snap == nil {
		return false
	}
	_, banned := (*snap)[deviceID]
	return banned
}

// Lookup returns the cached ban record for deviceID.
func (d *Directory) Lookup(deviceID string) (Record, bool) {
	snap := d.snapshot.Load()
	if snap == nil {
		return Record{}, false
	}
	rec, ok := (*snap)[deviceID]
	return rec, ok
}

// BannedCount returns the size of the current snapshot.
func (d *Directory) BannedCount() int {
	snap := d.snapshot.Load()
	if snap == nil {
		return 0
	}
	return len(*snap)
}

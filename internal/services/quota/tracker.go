package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/remote"
)

// Tracker reports consumed vs. available cloud storage, derived from the
// remote store's own accounting — never from summing local slot sizes, since
// remote compression and overhead may differ. Readings are cached briefly
// because the orchestrator consults the tracker before every backup.
type Tracker struct {
	cloud  remote.Store
	ttl    time.Duration
	logger *events.Logger

	mu        sync.Mutex
	cached    remote.QuotaInfo
	fetchedAt time.Time
}

// NewTracker creates a quota tracker with the given cache TTL.
func NewTracker(cloud remote.Store, ttl time.Duration, logger *events.Logger) *Tracker {
	return &Tracker{
		cloud:  cloud,
		ttl:    ttl,
		logger: logger.WithField("component", "quota_tracker"),
	}
}

// Usage returns the current quota reading, refreshing from the remote store
// when the cached value has expired.
func (t *Tracker) Usage(ctx context.Context) (remote.QuotaInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.fetchedAt.IsZero() && time.Since(t.fetchedAt) < t.ttl {
		return t.cached, nil
	}

	used, total, err := t.cloud.Quota(ctx)
	if err != nil {
		return remote.QuotaInfo{}, fmt.Errorf("query quota: %w", err)
	}

	t.cached = remote.QuotaInfo{UsedBytes: used, TotalBytes: total}
	t.fetchedAt = time.Now()

	t.logger.WithFields(map[string]interface{}{
		"used":  used,
		"total": total,
	}).Debug("Refreshed quota")

	return t.cached, nil
}

// Invalidate drops the cached reading; the next Usage call hits the remote
// store. Called after writes and deletes change consumption.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fetchedAt = time.Time{}
}

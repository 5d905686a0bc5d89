package remote

import (
	"context"
	"sync"

	"github.com/TheMichaelB/savesync/internal/models"
)

// Store is the cloud slot store: the same key-value surface as the local
// store plus quota accounting, reachable only when the gate reports online
// and authenticated. Transport failures and timeouts surface as
// models.ErrRemoteUnavailable; auth and server-side refusals as
// models.ErrRemoteRejected.
type Store interface {
	// Read returns the payload and metadata for a slot.
	Read(ctx context.Context, slot int) ([]byte, *models.SlotMetadata, error)

	// Stat returns metadata without transferring the payload.
	Stat(ctx context.Context, slot int) (*models.SlotMetadata, error)

	// Write persists a payload tagged with the given metadata.
	Write(ctx context.Context, slot int, payload []byte, meta *models.SlotMetadata) error

	// Delete removes a slot's cloud copy.
	Delete(ctx context.Context, slot int) error

	// List returns slot numbers holding a cloud copy.
	List(ctx context.Context) ([]int, error)

	// Quota returns the account's consumed and total bytes, as accounted by
	// the remote store itself.
	Quota(ctx context.Context) (used, total int64, err error)

	// Close releases resources.
	Close() error
}

// QuotaInfo is a point-in-time quota reading.
type QuotaInfo struct {
	UsedBytes  int64 `json:"used_bytes"`
	TotalBytes int64 `json:"total_bytes"`
}

// Remaining returns the unconsumed bytes, never negative.
func (q QuotaInfo) Remaining() int64 {
	if q.TotalBytes <= q.UsedBytes {
		return 0
	}
	return q.TotalBytes - q.UsedBytes
}

// Gate is the externally-supplied online/authenticated flag pair gating
// whether remote calls are attempted at all.
type Gate struct {
	mu            sync.RWMutex
	online        bool
	authenticated bool
}

// NewGate creates a gate that starts online but unauthenticated.
func NewGate() *Gate {
	return &Gate{online: true}
}

// SetOnline records connectivity as reported by the surrounding application.
func (g *Gate) SetOnline(online bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.online = online
}

// SetAuthenticated records whether a valid session token is held.
func (g *Gate) SetAuthenticated(authenticated bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authenticated = authenticated
}

// Ready reports whether remote calls may be attempted.
func (g *Gate) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.online && g.authenticated
}

// Check returns ErrRemoteUnavailable when offline and ErrRemoteRejected when
// online but unauthenticated.
func (g *Gate) Check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.online {
		return models.ErrRemoteUnavailable
	}
	if !g.authenticated {
		return models.ErrRemoteRejected
	}
	return nil
}

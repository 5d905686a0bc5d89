// Package client wires the save-sync components into the high-level API the
// CLI and the game UI consume.
package client

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/savesync/internal/config"
	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/registry"
	"github.com/TheMichaelB/savesync/internal/remote"
	"github.com/TheMichaelB/savesync/internal/services/auth"
	"github.com/TheMichaelB/savesync/internal/services/quota"
	syncsvc "github.com/TheMichaelB/savesync/internal/services/sync"
	"github.com/TheMichaelB/savesync/internal/store"
)

// Client provides the high-level API for save synchronization.
type Client struct {
	Auth     *auth.Service
	Sync     *syncsvc.Service
	Quota    *quota.Tracker
	Registry *registry.Registry
	Gate     *remote.Gate

	config *config.Config
	logger *events.Logger
	local  store.Store
	cloud  remote.Store

	// Set for the HTTP backend; the S3 backend has no change feed.
	httpStore *remote.HTTPStore
}

// New creates a fully wired client.
func New(ctx context.Context, cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	gate := remote.NewGate()

	var cloud remote.Store
	var httpStore *remote.HTTPStore
	switch cfg.API.Backend {
	case "s3":
		s3Store, err := remote.NewS3Store(ctx, &cfg.API, gate, logger)
		if err != nil {
			return nil, fmt.Errorf("create s3 store: %w", err)
		}
		cloud = s3Store
		// The S3 backend has no login exchange; credentials come from the
		// AWS environment.
		gate.SetAuthenticated(true)
	default:
		httpStore = remote.NewHTTPStore(&cfg.API, gate, logger)
		cloud = httpStore
	}

	var local store.Store
	var err error
	switch cfg.Storage.Driver {
	case "sqlite":
		local, err = store.NewSQLiteStore(cfg.Storage.DataDir+"/saves.db", logger)
	default:
		local, err = store.NewFileStore(cfg.Storage.DataDir, cfg.Storage.MaxPayloadSize, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}

	classifier := syncsvc.NewClassifier(cfg.Sync.ClockSkewTolerance)
	reg := registry.New(local, cloud, gate, classifier,
		cfg.Sync.SlotCount, cfg.Sync.MaxConcurrent, logger)

	tracker := quota.NewTracker(cloud, cfg.Sync.QuotaCacheTTL, logger)

	engine := syncsvc.NewEngine(local, cloud, reg, tracker, &syncsvc.Config{
		MaxConcurrent:      cfg.Sync.MaxConcurrent,
		ClockSkewTolerance: cfg.Sync.ClockSkewTolerance,
		EventBuffer:        cfg.Sync.EventBuffer,
	}, logger)

	resolver := syncsvc.NewResolver(local, cloud, reg, cfg.Sync.ClockSkewTolerance, logger)

	var authService *auth.Service
	if httpStore != nil {
		authService = auth.NewService(httpStore, gate, cfg.Auth.TokenFile, logger)
	}

	return &Client{
		Auth:      authService,
		Sync:      syncsvc.NewService(engine, resolver, reg, local, logger),
		Quota:     tracker,
		Registry:  reg,
		Gate:      gate,
		config:    cfg,
		logger:    logger,
		local:     local,
		cloud:     cloud,
		httpStore: httpStore,
	}, nil
}

// WatchCloud subscribes to the cloud change feed and marks changed slots
// stale in the registry until the context ends. Only the HTTP backend has a
// change feed.
func (c *Client) WatchCloud(ctx context.Context) error {
	if c.httpStore == nil {
		return fmt.Errorf("change feed not supported by the %s backend", c.config.API.Backend)
	}

	token := ""
	if c.Auth != nil {
		token = c.Auth.Token()
	}

	watcher := remote.NewWatcher(c.config.API.BaseURL, token, c.logger)
	return watcher.Run(ctx, func(notice remote.ChangeNotice) {
		c.Registry.MarkCloudStale(notice.Slot)
	})
}

// Close releases store resources.
func (c *Client) Close() error {
	var firstErr error
	if err := c.local.Close(); err != nil {
		firstErr = err
	}
	if err := c.cloud.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

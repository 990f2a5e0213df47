package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/cloverfin/clover/internal/config"
	"github.com/cloverfin/clover/internal/dismiss"
	"github.com/cloverfin/clover/internal/learning"
	"github.com/cloverfin/clover/internal/lifecycle"
	"github.com/cloverfin/clover/internal/service"
	"github.com/cloverfin/clover/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/clover/clover.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// learningConfig assembles analysis tunables from viper.
func learningConfig() learning.Config {
	return learning.Config{
		LookbackDays:   viper.GetInt("learning.lookback_days"),
		MinCorrections: viper.GetInt("learning.min_corrections"),
		CoverageRatio:  viper.GetFloat64("learning.coverage"),
	}
}

// initDismissals opens the persisted dismissed-pattern set.
func initDismissals() (dismiss.Store, error) {
	path := viper.GetString("dismissals.path")
	if path == "" {
		dir, err := config.AppDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "dismissed_patterns.json")
	} else {
		path = config.ExpandPath(path)
	}

	return dismiss.NewFileStore(path)
}

// initLifecycle wires storage, analyzer, materializer, and dismissals into
// a lifecycle manager.
func initLifecycle(store service.Storage) (*lifecycle.Manager, error) {
	dismissals, err := initDismissals()
	if err != nil {
		return nil, fmt.Errorf("failed to open dismissed patterns: %w", err)
	}

	analyzer := learning.NewAnalyzer(store, store, learningConfig())
	materializer := learning.NewMaterializer(store)

	return lifecycle.NewManager(analyzer, materializer, dismissals), nil
}

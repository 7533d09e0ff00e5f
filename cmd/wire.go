package cmd

import (
	"fmt"
	"os"
	"time"

	"prefs-manager/core/audit"
	"prefs-manager/core/config"
	"prefs-manager/core/crypto"
	"prefs-manager/core/database"
	"prefs-manager/core/prefs"
	"prefs-manager/core/storage"
	"prefs-manager/core/validate"
	dbprovider "prefs-manager/provider/database"
	"prefs-manager/provider/env"
	"prefs-manager/provider/file"
	"prefs-manager/provider/memory"
	objectprovider "prefs-manager/provider/object"
	restprovider "prefs-manager/provider/rest"

	"go.uber.org/zap"
)

// stack bundles everything the commands wire up from configuration.
type stack struct {
	injector    *prefs.Injector
	audit       *audit.Logger
	strategy    prefs.Strategy
	snapshotTTL time.Duration
}

// buildStack assembles the providers and the injector from configuration.
// The database provider is optional: a failed connection logs a warning
// and drops the provider instead of aborting startup.
func buildStack(cfg *config.Config, logg *zap.Logger) (*stack, error) {
	providers, err := buildProviders(cfg, logg)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers enabled; enable at least one in the providers config")
	}

	strategy, err := prefs.ParseStrategy(cfg.Prefs.Strategy)
	if err != nil {
		return nil, err
	}

	var encryption prefs.EncryptionService
	if cfg.Prefs.EncryptionPassphrase != "" {
		svc, err := crypto.New(cfg.Prefs.EncryptionPassphrase)
		if err != nil {
			return nil, fmt.Errorf("init encryption: %w", err)
		}
		encryption = svc
	}

	auditLog := audit.New(cfg.Prefs.AuditMaxEntries, logg)

	injector := prefs.NewInjector(prefs.Config{
		Providers:         providers,
		Strategy:          strategy,
		CacheEnabled:      cfg.Prefs.CacheEnabled,
		CacheTTL:          time.Duration(cfg.Prefs.CacheTTLSeconds) * time.Second,
		CacheMaxEntries:   cfg.Prefs.CacheMaxEntries,
		ValidationEnabled: cfg.Prefs.ValidationEnabled,
		Validator:         validate.New(),
		Encryption:        encryption,
		Audit:             auditLog,
		Logger:            logg,
	})

	return &stack{
		injector:    injector,
		audit:       auditLog,
		strategy:    strategy,
		snapshotTTL: time.Duration(cfg.Prefs.ReconcileSnapshotTTLSeconds) * time.Second,
	}, nil
}

func buildProviders(cfg *config.Config, logg *zap.Logger) ([]prefs.Provider, error) {
	pc := cfg.Providers
	var providers []prefs.Provider

	if pc.Memory {
		providers = append(providers, memory.New("memory", prefs.Priority(pc.MemoryPriority)))
	}

	if pc.File {
		providers = append(providers, file.New("file", prefs.Priority(pc.FilePriority), pc.FilePath))
	}

	if pc.Env {
		providers = append(providers, env.New("env", prefs.Priority(pc.EnvPriority), pc.EnvPrefix, env.Snapshot(os.Environ())))
	}

	if pc.Database {
		if db, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed, dropping database provider", zap.Error(err))
		} else {
			providers = append(providers, dbprovider.New("database", prefs.Priority(pc.DatabasePriority), db))
			logg.Info("Connected to preference database")
		}
	}

	if pc.Object {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		providers = append(providers, objectprovider.New("object", prefs.Priority(pc.ObjectPriority), client, cfg.Storage.Bucket, pc.ObjectPrefix))
	}

	if pc.Rest {
		if pc.RestBaseURL == "" {
			return nil, fmt.Errorf("rest provider enabled without a base URL")
		}
		providers = append(providers, restprovider.New("rest", prefs.Priority(pc.RestPriority), pc.RestBaseURL, restprovider.Options{
			Timeout: time.Duration(pc.RestTimeoutSeconds) * time.Second,
		}))
	}

	return providers, nil
}

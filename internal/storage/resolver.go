package storage

import (
	"context"
	"log/slog"
	"os"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// ResolveOptions carries the inputs of tier resolution.
type ResolveOptions struct {
	// Volume is the mount point for persistent dumps.
	Volume string
	// Container is the Object Storage container name.
	Container string
	// Discoverer finds platform-bound Object Storage credentials. Optional.
	Discoverer core.Discoverer
	// Factory builds the Object Storage client. Optional.
	Factory core.ObjectStoreFactory
	Logger  *slog.Logger
}

// Resolve picks the storage tier. It never fails: when no durable storage
// is available the local disk is used, which is a normal steady state.
func Resolve(ctx context.Context, opts ResolveOptions) *Destination {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if volumeAvailable(opts.Volume, logger) {
		logger.Info("using persistent volume for dumps", slog.String("volume", opts.Volume))
		return NewVolume(opts.Volume, opts.Container)
	}

	if client, ok := discoverObjectStore(ctx, opts, logger); ok {
		logger.Info("using Object Storage service for dumps", slog.String("container", opts.Container))
		return NewObjectStorage(client, opts.Container)
	}

	logger.Info("no persistent storage available for dumps, using local disk")
	return NewLocalDisk(opts.Container)
}

func volumeAvailable(path string, logger *slog.Logger) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("volume not available", slog.String("volume", path), slog.String("error", err.Error()))
		return false
	}
	if !info.IsDir() {
		logger.Warn("volume path is not a directory, ignoring", slog.String("volume", path))
		return false
	}
	return true
}

func discoverObjectStore(ctx context.Context, opts ResolveOptions, logger *slog.Logger) (core.ObjectStore, bool) {
	if opts.Discoverer == nil || opts.Factory == nil {
		return nil, false
	}

	raw, ok := opts.Discoverer.ServiceCredentials(core.ObjectStorageService)
	if !ok || len(raw) == 0 {
		logger.Debug("no Object Storage credentials bound")
		return nil, false
	}

	creds, err := core.DecodeCredentials(raw)
	if err != nil {
		logger.Warn("ignoring malformed Object Storage credentials", slog.String("error", err.Error()))
		return nil, false
	}
	creds = creds.Normalize()

	client, err := opts.Factory(ctx, creds)
	if err != nil || client == nil {
		if err != nil {
			logger.Warn("creating Object Storage client failed", slog.Any("credentials", creds), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return client, true
}

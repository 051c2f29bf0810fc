package storage

import (
	"context"
	"fmt"

	"musicbox/config"
)

// New builds the media store selected by cfg.MediaBackend.
func New(ctx context.Context, cfg *config.Config) (MediaStore, error) {
	switch cfg.MediaBackend {
	case "", "disk":
		store, err := NewDiskStore(cfg.MediaDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "minio":
		store, err := NewMinioStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
	}
}

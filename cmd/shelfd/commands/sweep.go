package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/internal/cli/output"
	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/cache"
	"github.com/shelfd/shelfd/pkg/config"
	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/realtime"
	"github.com/shelfd/shelfd/pkg/store/metadata"
	"github.com/shelfd/shelfd/pkg/store/object"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Trash maintenance",
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired trash and abandoned uploads",
	Long: `Run one sweep pass over the metadata store: permanently delete
trashed items past their retention window and abort uploads that were
never completed.

The running server does this on a timer; this command is for cron jobs
and one-off maintenance against a stopped server.

Examples:
  # Sweep using the default config
  shelfd trash sweep

  # Sweep with a custom config file
  shelfd trash sweep --config /etc/shelfd/config.yaml`,
	RunE: runSweep,
}

func init() {
	trashCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, err := metadata.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	objects, err := object.New(ctx, object.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	metaCache := cache.New(cache.Options{DefaultTTL: cfg.Cache.TTL})
	defer metaCache.Close()

	libraries := library.NewService(store, objects, metaCache, realtime.NewBus(0),
		audit.NewRecorder(store), nil, library.Config{
			BucketPrefix:       cfg.Storage.BucketPrefix,
			MaxFileSizeBytes:   int64(cfg.Storage.MaxFileSize),
			ChunkSizeBytes:     int64(cfg.Storage.ChunkSize),
			TrashRetention:     time.Duration(cfg.Trash.RetentionDays) * 24 * time.Hour,
			UploadExpiry:       cfg.Storage.UploadExpiry,
			PresignedURLExpiry: cfg.Storage.PresignedURLExpiry,
		})

	purged, err := libraries.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("trash sweep failed: %w", err)
	}
	swept := libraries.SweepExpiredUploads(ctx)

	return output.SimpleTable(os.Stdout, [][2]string{
		{"Trash items purged", fmt.Sprintf("%d", purged)},
		{"Expired uploads aborted", fmt.Sprintf("%d", swept)},
	})
}

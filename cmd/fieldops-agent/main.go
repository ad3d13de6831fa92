package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/offline"
	"github.com/mhollis-dev/fieldops-api/pkg/config"
	"github.com/mhollis-dev/fieldops-api/pkg/logger"
)

// The agent runs on a field device. It keeps a local queue of submissions and
// decisions captured while disconnected and drains it whenever connectivity
// to the server comes back.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	deviceID := cfg.Offline.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
		logr.Warn("no device id configured, using ephemeral id", zap.String("device_id", deviceID))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := offline.OpenStore(ctx, cfg.Offline.StorePath)
	if err != nil {
		logr.Sugar().Fatalw("failed to open offline store", "error", err)
	}
	defer store.Close()

	syncer := offline.NewHTTPSyncer(cfg.Offline.ServerURL, cfg.Offline.Token, logr)
	queue := offline.NewQueue(deviceID, store, syncer, logr)

	monitor := offline.NewMonitor(syncer, cfg.Offline.ProbeInterval, func(ctx context.Context) {
		resp, err := queue.Drain(ctx)
		if err != nil {
			logr.Warn("drain after reconnect failed", zap.Error(err))
			return
		}
		if resp.Conflicts > 0 {
			logr.Warn("drain completed with conflicts",
				zap.Int("synced", resp.Synced), zap.Int("conflicts", resp.Conflicts))
		}
	}, logr)
	monitor.Start(ctx)
	defer monitor.Stop()

	logr.Sugar().Infow("agent started",
		"device_id", deviceID,
		"server", cfg.Offline.ServerURL,
		"store", cfg.Offline.StorePath)

	<-ctx.Done()
	logr.Info("agent shutting down")
}

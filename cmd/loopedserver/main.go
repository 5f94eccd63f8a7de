// Command loopedserver runs a looped conversation-graph sync server.
//
// Peers pull the graph over GET /database (a full clone, for cold-join) and
// push their own contributions over POST /database (a delta, which the
// server merges and answers with its own outstanding delta). A companion
// admin server exposes process status, registered peers, and metrics on a
// separate address.
//
// Usage:
//
//	# Defaults: listen on 127.0.0.1:7070, admin on 127.0.0.1:7071, in-memory only
//	./loopedserver
//
//	# Persistent graph, custom ports
//	LOOPED_SNAPSHOT_FILE=/var/lib/looped/graph.db LOOPED_LISTEN_ADDRESS=0.0.0.0:7070 ./loopedserver
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/romasoletskyi/looped/internal/adminserver"
	"github.com/romasoletskyi/looped/internal/config"
	"github.com/romasoletskyi/looped/internal/graph"
	"github.com/romasoletskyi/looped/internal/logger"
	"github.com/romasoletskyi/looped/internal/metrics"
	"github.com/romasoletskyi/looped/internal/snapshot"
	"github.com/romasoletskyi/looped/internal/syncserver"
)

func main() {
	cfg := config.Load()
	log := logger.New("MAIN", cfg.LogLevel)

	printBanner(cfg)

	store, err := snapshot.Open(cfg.SnapshotFile)
	if err != nil {
		log.Fatalf("init", "open snapshot store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("shutdown", "snapshot store close error: %v", err)
		}
	}()

	db, ok, err := store.Load()
	switch {
	case err != nil:
		log.Warnf("init", "snapshot load failed, starting fresh: %v", err)
		db = graph.New()
	case ok:
		log.Infof("init", "restored snapshot with %d phrases", db.PhraseCount())
	default:
		log.Info("init", "no snapshot found, starting fresh graph")
		db = graph.New()
	}

	m := metrics.New()
	sync := syncserver.New(db, logger.New("SYNC", cfg.LogLevel), m, store)
	admin := adminserver.New(cfg, sync.Database, m, logger.New("ADMIN", cfg.LogLevel))

	syncSrv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           h2c.NewHandler(sync.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	adminSrv := &http.Server{
		Addr:              cfg.AdminAddress,
		Handler:           admin.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("init", "sync server listening on %s", cfg.ListenAddress)
		if err := syncSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("sync_server", "fatal: %v", err)
		}
	}()
	go func() {
		log.Infof("init", "admin server listening on %s", cfg.AdminAddress)
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin_server", "fatal: %v", err)
		}
	}()

	stopSnapshots := make(chan struct{})
	go runSnapshotTicker(sync, log, cfg.SnapshotInterval, stopSnapshots)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown", "signal received, shutting down")
	close(stopSnapshots)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := syncSrv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown", "sync server shutdown error: %v", err)
	}
	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown", "admin server shutdown error: %v", err)
	}
	if err := sync.Save(); err != nil {
		log.Errorf("shutdown", "final snapshot save error: %v", err)
	}
}

// runSnapshotTicker saves the graph on a fixed interval until stop is closed.
func runSnapshotTicker(s *syncserver.Server, log *logger.Logger, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Save(); err != nil {
				log.Errorf("snapshot", "periodic save error: %v", err)
			} else {
				log.Debug("snapshot", "periodic save complete")
			}
		case <-stop:
			return
		}
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║                looped sync server                    ║
╚══════════════════════════════════════════════════════╝
  Listen address  : %s
  Admin address   : %s
  Log level       : %s
  Snapshot file   : %s
  Snapshot every  : %s

  Check status:
    curl http://%s/status
`, cfg.ListenAddress, cfg.AdminAddress, cfg.LogLevel,
		snapshotLabel(cfg.SnapshotFile), cfg.SnapshotInterval,
		cfg.AdminAddress)
}

func snapshotLabel(path string) string {
	if path == "" {
		return "(in-memory only)"
	}
	return path
}

// Command basalt runs the storage substrate standalone: it opens the data
// file, builds the buffer pool, and serves pool metrics over HTTP until
// interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/basaltdb/basalt/storage"
	"github.com/basaltdb/basalt/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file (.json or .ini); env overrides apply when unset")
	flag.Parse()

	var cfg *storage.Config
	var err error
	if *configPath != "" {
		cfg, err = storage.LoadConfigFromFile(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}
	} else {
		cfg = storage.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			logrus.WithError(err).Fatal("invalid config")
		}
	}

	logger := logrus.New()
	logger.SetLevel(storage.ParseLogLevel(cfg.LogLevel))

	if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
		logger.WithError(err).Fatal("failed to create data directory")
	}

	diskManager, err := storage.NewFileDiskManager(filepath.Join(cfg.DataDirectory, "basalt.db"))
	if err != nil {
		logger.WithError(err).Fatal("failed to open data file")
	}
	defer diskManager.Close()

	var logManager *storage.LogManager
	if cfg.WALEnabled {
		if err := os.MkdirAll(cfg.WALDirectory, 0755); err != nil {
			logger.WithError(err).Fatal("failed to create WAL directory")
		}
		compression, err := storage.ParseCompressionType(cfg.WALCompression)
		if err != nil {
			logger.WithError(err).Fatal("invalid WAL compression")
		}
		logManager, err = storage.NewLogManager(filepath.Join(cfg.WALDirectory, "basalt.wal"), compression, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to open WAL")
		}
		defer logManager.Close()
	}

	pool, err := storage.NewBufferPoolManager(cfg.PoolSize, diskManager, cfg.ReplacerK, logManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create buffer pool")
	}

	server := web.NewServer(pool, logger)
	go func() {
		if err := server.ListenAndServe(cfg.StatsAddr); err != nil {
			logger.WithError(err).Error("stats server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("stats server shutdown failed")
	}
	if cfg.EnableMetrics {
		pool.Metrics().LogMetrics(logger)
	}
	pool.Close()
}

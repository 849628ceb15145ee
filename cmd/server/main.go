package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"warfront/internal/api"
	"warfront/internal/config"
	"warfront/internal/game"
	"warfront/internal/maploader"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Debug("no .env file found, using environment variables only")
	}

	cfg := config.Load()
	log := newLogger(cfg.Log)

	log.WithFields(logrus.Fields{
		"map":       cfg.MapFile,
		"tick_rate": cfg.Movement.TickRate,
		"backend":   cfg.Movement.Backend,
	}).Info("warfront movement server starting")

	raw, err := os.ReadFile(cfg.MapFile)
	if err != nil {
		log.WithError(err).Fatal("reading map file")
	}
	navData, err := maploader.Parse(raw)
	if err != nil {
		log.WithError(err).Fatal("parsing map file")
	}

	core, err := game.New(cfg.Movement, navData, log)
	if err != nil {
		log.WithError(err).Fatal("building movement core")
	}
	core.SetHooks(api.Hooks())

	if cfg.EventLog != "" {
		if err := core.StartEventLog(cfg.EventLog); err != nil {
			log.WithError(err).Warn("event log unavailable")
		}
	}

	if err := api.StartDebugServer(api.DefaultObservabilityConfig(), log); err != nil {
		log.WithError(err).Warn("debug server unavailable")
	}

	core.Start()
	defer core.Stop()

	srv := api.NewServer(core, log)
	go func() {
		if err := srv.Listen(cfg.Server.Port); err != nil {
			log.WithError(err).Fatal("ops server exited")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

// newLogger builds the logrus logger, teeing to a rotated file when one
// is configured.
func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeM,
			MaxBackups: cfg.MaxFiles,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
	return log
}

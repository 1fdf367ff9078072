package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/app"
	"github.com/vladislavdragonenkov/shopdesk/internal/version"
)

// setupLogger настраивает формат логирования: text для терминала, JSON для контейнеров.
func setupLogger(format string) {
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetLevel(log.InfoLevel)
}

// configFiles возвращает файлы конфигурации из флага -config; пусто означает поиск по умолчанию.
func configFiles(args []string) ([]string, string, error) {
	fs := flag.NewFlagSet("order-service", flag.ContinueOnError)
	path := fs.String("config", "", "path to YAML config (default: ./config.yaml, /etc/shopdesk/config.yaml)")
	format := fs.String("log-format", "text", "log format: text|json")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if *path == "" {
		return nil, *format, nil
	}
	return []string{*path}, *format, nil
}

func main() {
	files, format, err := configFiles(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	setupLogger(format)

	cfg, err := app.LoadConfig(files...)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"build":        version.String(),
	}).Info("starting order service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("order service exited with error")
	}

	log.Info("order service stopped")
}

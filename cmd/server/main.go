// Command server runs the Askıda Forma donation site.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	flag "github.com/spf13/pflag"

	"github.com/askidaforma/askida-forma/internal/access"
	"github.com/askidaforma/askida-forma/internal/api"
	"github.com/askidaforma/askida-forma/internal/card"
	"github.com/askidaforma/askida-forma/internal/config"
	"github.com/askidaforma/askida-forma/internal/donation"
	"github.com/askidaforma/askida-forma/internal/feed"
	"github.com/askidaforma/askida-forma/internal/logging"
	"github.com/askidaforma/askida-forma/internal/media"
	"github.com/askidaforma/askida-forma/internal/store"
	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

func main() {
	var (
		configPath  string
		openBrowser bool
		debug       bool
	)
	flag.StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	flag.BoolVar(&openBrowser, "open", false, "open the site in the default browser once listening")
	flag.BoolVar(&debug, "debug", false, "enable debug logging and gin debug mode")
	flag.Parse()

	if err := run(configPath, openBrowser, debug); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(configPath string, openBrowser, debug bool) error {
	if err := config.LoadDotEnv(configPath); err != nil {
		log.WithError(err).Warn("failed to load .env file")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if errClose := db.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close store")
		}
	}()
	log.WithField("driver", cfg.Store.Driver).Info("donation store ready")

	var uploads media.Storage
	if cfg.Storage.Enabled() {
		minioStorage, errStorage := media.NewMinioStorage(cfg.Storage)
		if errStorage != nil {
			return fmt.Errorf("open object storage: %w", errStorage)
		}
		uploads = minioStorage
	} else {
		log.Warn("object storage is not configured, admin uploads are disabled")
	}

	manager := sdkaccess.NewManager()
	if _, err := access.ApplyAccessProviders(manager, nil, cfg); err != nil {
		return err
	}

	watcher := config.NewWatcher(configPath, cfg, func(oldCfg, newCfg *config.Config) {
		if _, errApply := access.ApplyAccessProviders(manager, oldCfg, newCfg); errApply != nil {
			log.WithError(errApply).Error("failed to apply admin access changes")
		}
		if oldCfg.Bank != newCfg.Bank {
			log.Info("bank transfer details updated")
		}
	})
	if _, errStat := os.Stat(configPath); errStat == nil {
		go func() {
			if errWatch := watcher.Run(ctx); errWatch != nil {
				log.WithError(errWatch).Warn("config hot reload disabled")
			}
		}()
	}

	renderer, err := card.NewRenderer(&http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("load card fonts: %w", err)
	}

	hub := feed.NewHub("")
	defer hub.Close()

	module := donation.NewDonationModule(donation.Options{
		Store:    db,
		Access:   manager,
		Media:    uploads,
		Renderer: renderer,
		Feed:     hub,
		Settings: watcher.Current,
		Sessions: donation.NewSessionStoreWithTTL(cfg.Session.TTL),
		Logger:   donation.NewDonationLogger(),
	}, hub.Handler())
	go module.RunSessionCleanup(ctx)

	server := api.NewServer(cfg.Addr(), module)
	if openBrowser {
		go func() {
			select {
			case <-server.Ready():
			case <-ctx.Done():
				return
			}
			url := fmt.Sprintf("http://localhost:%d/", cfg.Port)
			if errOpen := open.Run(url); errOpen != nil {
				log.WithError(errOpen).Warn("failed to open browser")
			}
		}()
	}

	err = server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("server stopped")
	return err
}

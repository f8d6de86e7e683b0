// queryd serves the HTTP query API (C10): image/video/album/user
// search, status, subreddit list, and video frame thumbnails.
//
// Usage:
//
//	queryd [--config <path>]
//
// Default config path: "config.yaml".
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/simon987/irarchives-go/internal/cache"
	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/httpapi"
	"github.com/simon987/irarchives-go/internal/logging"
	"github.com/simon987/irarchives-go/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the structural config file")
	flag.Parse()

	logging.Init()
	log := logging.For("cmd.queryd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var c cache.Cache
	if cfg.CacheBackend == "redis" {
		c = cache.NewRedis(cfg.RedisAddr)
	} else {
		c = cache.NewMemory(ctx)
	}

	srv, err := httpapi.New(db, c, cfg)
	if err != nil {
		log.WithError(err).Fatal("build http api")
	}

	e := echo.New()
	e.HideBanner = true
	e.Static("/", "static")
	e.File("/favicon.ico", "static/favicon.ico")
	srv.Register(e)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown error")
		}
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("listening")
	if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("shut down")
}

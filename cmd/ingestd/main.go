// ingestd consumes post/comment envelopes from the upstream message
// broker and writes matched media into the store (C9).
//
// Usage:
//
//	ingestd [--config <path>]
//
// Default config path: "config.yaml".
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/simon987/irarchives-go/internal/bus"
	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/ingest"
	"github.com/simon987/irarchives-go/internal/logging"
	"github.com/simon987/irarchives-go/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the structural config file")
	flag.Parse()

	logging.Init()
	log := logging.For("cmd.ingestd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	consumer, err := bus.Connect(cfg.AMQPURL)
	if err != nil {
		log.WithError(err).Fatal("connect to broker")
	}
	defer consumer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool := ingest.NewPool(consumer, db, cfg)
	log.WithField("workers", cfg.WorkerCount).Info("starting ingest pool")
	if err := pool.Run(ctx, cfg.SubredditListFile); err != nil {
		log.WithError(err).Fatal("ingest pool exited")
	}
	log.Info("shut down")
}

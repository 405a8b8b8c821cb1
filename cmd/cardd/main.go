package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"cardd/internal/api"
	"cardd/internal/edge"
	"cardd/internal/store"
	"cardd/internal/types"
)

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err != nil {
		log.Info("The .env file not found.")
	}

	cfg, err := types.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	st, err := store.New(cfg.CardsDir)
	if err != nil {
		log.Fatalf("Failed to initialize card store: %v", err)
	}

	// Deploy operations never reload the edge server. The only reload, when
	// enabled, happens here at startup.
	var reloader edge.Reloader = edge.Nop{}
	if cfg.CaddyReload {
		reloader = &edge.Caddy{}
	}
	if err := reloader.Reload(context.Background()); err != nil {
		log.WithError(err).Warn("edge reload failed")
	}

	log.WithFields(log.Fields{
		"cardsDir": st.Root(),
		"baseUrl":  cfg.BaseURL,
		"port":     cfg.Port,
	}).Info("starting cardd")

	stop, done := api.RunServerInterruptible(cfg, st)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Infof("Received %s, shutting down", s)
		stop <- struct{}{}
		err = <-done
	case err = <-done:
	}
	if err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/TaiJP119/vet-vetconnect-some/cmd/app"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/config"
	setupBot "github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/telegram/setup"

	_ "time/tzdata"
)

func main() {
	cfg := config.Get()
	a, err := app.New(cfg)
	if err != nil {
		log.Panic(err)
	}

	setupBot.Setup(a)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = a.Start(ctx); err != nil {
		log.Panic(err)
	}
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"

	"messagely/internal/auth"
	"messagely/internal/server"
	"messagely/internal/storage"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	serverCfg := server.EnvConfig{}
	if err := env.Parse(&serverCfg); err != nil {
		sugar.Fatalf("Cannot parse server env config: %v", err)
	}

	storeCfg := storage.Config{}
	if err := env.Parse(&storeCfg); err != nil {
		sugar.Fatalf("Cannot parse storage env config: %v", err)
	}

	authCfg := auth.EnvConfig{}
	if err := env.Parse(&authCfg); err != nil {
		sugar.Fatalf("Cannot parse auth env config: %v", err)
	}

	store, err := storage.New(context.Background(), sugar, storeCfg, storage.ConnectionTimeout(30*time.Second))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	tokens := auth.NewTokenService([]byte(authCfg.Secret), authCfg.TTL)

	srv, err := server.NewServer(sugar, store, tokens,
		server.WithEnvConfig(serverCfg),
		server.ReadTimeout(5*time.Second),
		server.WriteTimeout(10*time.Second),
	)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}

package main

import (
	"flag"
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v4/stdlib"

	"messagely/internal/storage"
)

func main() {
	command := flag.String("command", "up", "goose command (up|down|status)")
	dir := flag.String("dir", "migrations", "directory with migration files")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg := storage.Config{}
	if err := env.Parse(&cfg); err != nil {
		sugar.Fatalf("Cannot parse storage env config: %v", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.DSN())
	if err != nil {
		sugar.Fatalf("Cannot open database: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		sugar.Fatalf("Cannot configure goose: %v", err)
	}

	switch *command {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	default:
		sugar.Fatalf("Unsupported command: %s", *command)
	}
	if err != nil {
		sugar.Fatalf("Migration command %q failed: %v", *command, err)
	}

	sugar.Infof("Migration command %q completed", *command)
}

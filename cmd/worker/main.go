package main

import (
	"context"
	"log"
	"os"

	"github.com/oceanatlas/argosync/internal/worker"
	"github.com/oceanatlas/argosync/internal/worker/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	app := worker.NewApp(cfg)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

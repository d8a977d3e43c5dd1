package main

import (
	"context"
	"flag"
	"log"
	"visual-regression/internal/config"
	"visual-regression/internal/runnable"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	flag.BoolVar(&runnable.Debug, "debug", config.EnvOrDefault("DEBUG", false), "Enable text logs and pprof endpoints")
	flag.Parse()

	server := runnable.NewServer()
	if err := server.Start(context.Background()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

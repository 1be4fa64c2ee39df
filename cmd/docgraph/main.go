package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arturoeanton/docgraph/pkg/config"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(config.LoadClient(), os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hamza-Xoho/digital-surveyor/cmd/surveyor/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewSurveyorCommand(ctx, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

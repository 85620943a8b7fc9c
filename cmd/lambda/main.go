package main

import (
	"context"
	"fmt"

	"calmirror/internal/app"
	"calmirror/internal/config"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"
)

func setup() (*config.Settings, error) {
	_, err := maxprocs.Set()
	if err != nil {
		return nil, fmt.Errorf("error setting GOMAXPROCS %w", err)
	}

	_ = godotenv.Load()

	return config.LoadSettings()
}

// HandleRequest runs one sync pass per scheduled invocation.
func HandleRequest(ctx context.Context) error {
	settings, err := setup()
	if err != nil {
		return err
	}

	logger := app.SetupLogger(settings.LogLevel)
	logger.Info("starting up", "component", "calmirror")
	defer logger.Info("shutting down", "component", "calmirror")

	a, err := app.New(ctx, logger, settings, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Syncer.Sync(ctx)
	if err != nil {
		logger.Error("sync failed", "run", report.RunID, "error", err)
		return err
	}
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}

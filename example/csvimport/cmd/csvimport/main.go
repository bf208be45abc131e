package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/tigerroll/shorebreak/example/csvimport/internal/app"
	_ "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

//go:embed all:resources/migrations
var applicationMigrationsFS embed.FS

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig, applicationMigrationsFS)
}

// Package app wires the csvimport example application with uber-fx.
package app

import (
	"context"
	"embed"
	"errors"
	"io/fs"

	"go.uber.org/fx"

	appjob "github.com/tigerroll/shorebreak/example/csvimport/internal/job"
	gormadapter "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/shorebreak/pkg/batch/core/config"
	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	inframetrics "github.com/tigerroll/shorebreak/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/shorebreak/pkg/batch/launcher"
	"github.com/tigerroll/shorebreak/pkg/batch/listener/logging"
	"github.com/tigerroll/shorebreak/pkg/batch/listener/notification"
	sqlrepo "github.com/tigerroll/shorebreak/pkg/batch/repository/sql"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

// RunApplication assembles the Fx graph and runs the product import job to
// completion.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, applicationMigrationsFS embed.FS) {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			applicationMigrationsFS,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		),

		logger.Module,
		config.Module,
		inframetrics.Module,
		gormadapter.Module,
		sqlrepo.Module,
		launcher.Module,
		logging.Module,
		notification.Module,
		appjob.Module,

		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags(
			"", "", "", "", "", "",
			`name:"appCtx"`,
		))),
	)

	app.Run()

	if err := app.Err(); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}

// startJobExecution migrates the schemas and launches the job once the Fx
// application starts.
func startJobExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	jobLauncher *launcher.JobLauncher,
	migrator *sqlrepo.Migrator,
	job port.Job,
	applicationMigrationsFS embed.FS,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in job execution: %v", r)
					}
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				runJob(appCtx, jobLauncher, migrator, job, applicationMigrationsFS)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}

func runJob(
	ctx context.Context,
	jobLauncher *launcher.JobLauncher,
	migrator *sqlrepo.Migrator,
	job port.Job,
	applicationMigrationsFS embed.FS,
) {
	if err := migrator.Up(ctx); err != nil {
		logger.Errorf("Failed to migrate metadata schema: %v", err)
		return
	}
	appFS, err := fs.Sub(applicationMigrationsFS, "resources/migrations")
	if err != nil {
		logger.Errorf("Failed to open application migrations: %v", err)
		return
	}
	if err := migrator.UpApplication(ctx, appFS); err != nil {
		logger.Errorf("Failed to migrate application schema: %v", err)
		return
	}

	execution, err := jobLauncher.Launch(ctx, job, model.NewJobParameters())
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateExecution) {
			logger.Infof("Job '%s' already completed for these parameters; nothing to do.", job.JobName())
			return
		}
		logger.Errorf("Job '%s' failed: %v", job.JobName(), err)
		if execution != nil {
			logger.Errorf("Execution %s finished with status %s", execution.ID, execution.Status)
		}
		return
	}
	logger.Infof("Job '%s' finished (execution: %s, status: %s, exit: %s)",
		job.JobName(), execution.ID, execution.Status, execution.ExitStatus)
}

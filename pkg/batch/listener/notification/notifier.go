// Package notification provides a job completion listener that hands the
// final execution state to a pluggable notifier.
package notification

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

// Notifier delivers job completion notifications to an external channel.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution)
}

// LogNotifier is a Notifier that only logs.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion logs the final state of the execution.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) {
	duration := execution.EndTime.Sub(execution.StartTime)
	if execution.Status == model.StatusCompleted {
		logger.Infof("Job '%s' (execution: %s) completed in %s", execution.JobName, execution.ID, duration)
		return
	}
	logger.Warnf("Job '%s' (execution: %s) ended with status %s after %s (failures: %d)",
		execution.JobName, execution.ID, execution.Status, duration, len(execution.Failures))
}

var _ Notifier = (*LogNotifier)(nil)

// Listener notifies on job completion. Executions that have not reached a
// terminal state are ignored.
type Listener struct {
	notifier Notifier
}

// NewListener creates a Listener over the given Notifier.
func NewListener(notifier Notifier) *Listener {
	return &Listener{notifier: notifier}
}

func (l *Listener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

func (l *Listener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if !jobExecution.Status.IsFinished() {
		return
	}
	l.notifier.NotifyJobCompletion(ctx, jobExecution)
}

var _ port.JobExecutionListener = (*Listener)(nil)

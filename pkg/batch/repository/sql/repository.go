package sql

import (
	"context"
	"fmt"

	"github.com/tigerroll/shorebreak/pkg/batch/adapter/database"
	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	tx "github.com/tigerroll/shorebreak/pkg/batch/core/tx"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

const moduleName = "sql_repository"

// Repository implements repository.JobRepository over a relational
// database. Writes issued during a chunk commit join the transaction the
// engine placed in the context, so execution metadata and chunk data
// commit atomically.
type Repository struct {
	conn database.DBConnection
}

// NewRepository creates a Repository over the given connection.
func NewRepository(conn database.DBConnection) *Repository {
	return &Repository{conn: conn}
}

// getExecutor returns the transaction from the context when one is active,
// otherwise the plain connection.
func (r *Repository) getExecutor(ctx context.Context) tx.TxExecutor {
	if t, ok := tx.FromContext(ctx); ok {
		return t
	}
	return r.conn
}

// SaveJobInstance persists a new job instance.
func (r *Repository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	entity := fromDomainJobInstance(instance)
	if _, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return exception.NewRetryableError(moduleName, fmt.Sprintf("failed to save job instance %s", instance.ID), err)
	}
	return nil
}

// FindJobInstanceByNameAndParameters looks an instance up by its identity.
func (r *Repository) FindJobInstanceByNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	var entities []JobInstanceEntity
	err := r.conn.ExecuteQuery(ctx, &entities, map[string]interface{}{
		"job_name":        jobName,
		"parameters_hash": params.Hash(),
	})
	if err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query job instance", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(&entities[0]), nil
}

// FindJobInstanceByID looks an instance up by ID.
func (r *Repository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	var entities []JobInstanceEntity
	if err := r.conn.ExecuteQuery(ctx, &entities, map[string]interface{}{"id": id}); err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query job instance", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(&entities[0]), nil
}

// FindJobNames lists distinct job names.
func (r *Repository) FindJobNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.conn.Pluck(ctx, &JobInstanceEntity{}, "job_name", &names, nil); err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to list job names", err)
	}
	return names, nil
}

// SaveJobExecution persists a new job execution.
func (r *Repository) SaveJobExecution(ctx context.Context, execution *model.JobExecution) error {
	execution.Version++
	entity := fromDomainJobExecution(execution)
	if _, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		execution.Version--
		return exception.NewRetryableError(moduleName, fmt.Sprintf("failed to save job execution %s", execution.ID), err)
	}
	return nil
}

// UpdateJobExecution persists the execution state under optimistic version
// locking.
func (r *Repository) UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	originalVersion := execution.Version
	execution.Version++
	entity := fromDomainJobExecution(execution)

	rows, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "UPDATE", entity.TableName(), map[string]interface{}{
		"id":      execution.ID,
		"version": originalVersion,
	})
	if err != nil {
		execution.Version = originalVersion
		return exception.NewRetryableError(moduleName, fmt.Sprintf("failed to update job execution %s", execution.ID), err)
	}
	if rows == 0 {
		execution.Version = originalVersion
		return fmt.Errorf("%w: job execution %s at version %d", repository.ErrOptimisticLock, execution.ID, originalVersion)
	}
	return nil
}

// FindJobExecutionByID loads a job execution with its step executions.
func (r *Repository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	var entities []JobExecutionEntity
	if err := r.conn.ExecuteQuery(ctx, &entities, map[string]interface{}{"id": id}); err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query job execution", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	execution := toDomainJobExecution(&entities[0])
	if err := r.loadStepExecutions(ctx, execution); err != nil {
		return nil, err
	}
	return execution, nil
}

// FindJobExecutionsByInstance lists the executions of an instance, newest first.
func (r *Repository) FindJobExecutionsByInstance(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error) {
	var entities []JobExecutionEntity
	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{
		"job_instance_id": instance.ID,
	}, "create_time DESC", 0)
	if err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query job executions", err)
	}
	out := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		execution := toDomainJobExecution(&entities[i])
		if err := r.loadStepExecutions(ctx, execution); err != nil {
			return nil, err
		}
		out = append(out, execution)
	}
	return out, nil
}

// FindLatestJobExecution returns the newest execution of an instance with
// its step executions, so a restart can resume from them.
func (r *Repository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	var entities []JobExecutionEntity
	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{
		"job_instance_id": jobInstanceID,
	}, "create_time DESC", 1)
	if err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query latest job execution", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	execution := toDomainJobExecution(&entities[0])
	if err := r.loadStepExecutions(ctx, execution); err != nil {
		return nil, err
	}
	return execution, nil
}

func (r *Repository) loadStepExecutions(ctx context.Context, execution *model.JobExecution) error {
	steps, err := r.FindStepExecutionsByJobExecutionID(ctx, execution.ID)
	if err != nil {
		return err
	}
	execution.StepExecutions = steps
	return nil
}

// SaveStepExecution persists a new step execution.
func (r *Repository) SaveStepExecution(ctx context.Context, execution *model.StepExecution) error {
	execution.Version++
	entity := fromDomainStepExecution(execution)
	if _, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		execution.Version--
		return exception.NewRetryableError(moduleName, fmt.Sprintf("failed to save step execution %s", execution.ID), err)
	}
	return nil
}

// UpdateStepExecution persists the counters and state of a step execution
// under optimistic version locking. Inside a chunk commit it writes through
// the chunk transaction.
func (r *Repository) UpdateStepExecution(ctx context.Context, execution *model.StepExecution) error {
	originalVersion := execution.Version
	execution.Version++
	entity := fromDomainStepExecution(execution)

	rows, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "UPDATE", entity.TableName(), map[string]interface{}{
		"id":      execution.ID,
		"version": originalVersion,
	})
	if err != nil {
		execution.Version = originalVersion
		return exception.NewRetryableError(moduleName, fmt.Sprintf("failed to update step execution %s", execution.ID), err)
	}
	if rows == 0 {
		execution.Version = originalVersion
		return fmt.Errorf("%w: step execution %s at version %d", repository.ErrOptimisticLock, execution.ID, originalVersion)
	}
	return nil
}

// FindStepExecutionByID looks a step execution up by ID.
func (r *Repository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	var entities []StepExecutionEntity
	if err := r.conn.ExecuteQuery(ctx, &entities, map[string]interface{}{"id": id}); err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query step execution", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrStepExecutionNotFound
	}
	return toDomainStepExecution(&entities[0]), nil
}

// FindStepExecutionsByJobExecutionID lists the step executions of a job
// execution, oldest first.
func (r *Repository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	var entities []StepExecutionEntity
	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{
		"job_execution_id": jobExecutionID,
	}, "start_time ASC", 0)
	if err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query step executions", err)
	}
	out := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainStepExecution(&entities[i]))
	}
	return out, nil
}

// SaveCheckpoint upserts the checkpoint of a step execution.
func (r *Repository) SaveCheckpoint(ctx context.Context, cp *model.CheckpointData) error {
	entity := fromDomainCheckpoint(cp)
	_, err := r.getExecutor(ctx).ExecuteUpsert(ctx, entity, entity.TableName(),
		[]string{"step_execution_id"},
		[]string{"source_offset", "execution_context", "last_updated"})
	if err != nil {
		return exception.NewRetryableError(moduleName, fmt.Sprintf("failed to save checkpoint for step %s", cp.StepExecutionID), err)
	}
	return nil
}

// FindCheckpoint loads the checkpoint of a step execution.
func (r *Repository) FindCheckpoint(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	var entities []CheckpointEntity
	if err := r.conn.ExecuteQuery(ctx, &entities, map[string]interface{}{"step_execution_id": stepExecutionID}); err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query checkpoint", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrCheckpointNotFound
	}
	return toDomainCheckpoint(&entities[0]), nil
}

// DeleteCheckpoint removes the checkpoint of a step execution.
func (r *Repository) DeleteCheckpoint(ctx context.Context, stepExecutionID string) error {
	entity := &CheckpointEntity{StepExecutionID: stepExecutionID}
	_, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "DELETE", entity.TableName(), map[string]interface{}{
		"step_execution_id": stepExecutionID,
	})
	if err != nil {
		return exception.NewRetryableError(moduleName, "failed to delete checkpoint", err)
	}
	return nil
}

// SaveSkippedRecord persists one skip audit row.
func (r *Repository) SaveSkippedRecord(ctx context.Context, rec *model.SkippedRecord) error {
	entity := fromDomainSkippedRecord(rec)
	if _, err := r.getExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return exception.NewRetryableError(moduleName, "failed to save skipped record", err)
	}
	return nil
}

// FindSkippedRecords lists the skip audit rows of a step execution, in
// source order.
func (r *Repository) FindSkippedRecords(ctx context.Context, stepExecutionID string) ([]*model.SkippedRecord, error) {
	var entities []SkippedRecordEntity
	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{
		"step_execution_id": stepExecutionID,
	}, "source_offset ASC", 0)
	if err != nil {
		return nil, exception.NewRetryableError(moduleName, "failed to query skipped records", err)
	}
	out := make([]*model.SkippedRecord, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainSkippedRecord(&entities[i]))
	}
	return out, nil
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	return r.conn.Close()
}

var _ repository.JobRepository = (*Repository)(nil)

// Package jobs hosts the asynq background tasks and the worker wrapper.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/clavis-iam/clavis-iam/internal/jobs"
	"github.com/clavis-iam/clavis-iam/internal/shared"
)

// Queue and task identifiers.
const (
	QueueDefault = "default"

	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload configures one audit retention run.
type AuditPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditPruneTask builds the periodic audit retention task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(AuditPrunePayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, body, asynq.Queue(QueueDefault)), nil
}

// AuditPruneJob removes audit records older than the retention window.
type AuditPruneJob struct {
	Audit   *shared.AuditLogger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes one audit prune task.
func (j *AuditPruneJob) Handle(ctx context.Context, task *asynq.Task) error {
	tracker := j.Metrics.Track(TaskAuditPrune)
	var payload AuditPrunePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		return tracker.End(asynq.SkipRetry)
	}
	removed, err := j.Audit.Prune(ctx, retention)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("audit prune", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if j.Logger != nil {
		j.Logger.Info("audit prune complete", slog.Int64("removed", removed))
	}
	return tracker.End(nil)
}

package scheduler

import (
	"context"

	appsync "github.com/erp/odoosync/internal/application/ordersync"
	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
)

const (
	JobResendFailed    = "resend_failed_orders"
	JobActivityCleanup = "activity_log_cleanup"
)

// cronActor attributes scheduled work in the activity log
var cronActor = ordersync.Actor{
	User:   ordersync.ActivityUser{ID: "0", Username: "cron", DisplayName: "Scheduler"},
	Source: ordersync.TriggerCronJob,
}

// FailedOrderResender resends the failed orders queue
type FailedOrderResender interface {
	ResendFailed(ctx context.Context, limit int) (appsync.BatchResult, error)
}

// ResendFailedJob resends up to BatchSize failed orders per run
type ResendFailedJob struct {
	resender  FailedOrderResender
	batchSize int
}

// NewResendFailedJob creates the job
func NewResendFailedJob(resender FailedOrderResender, batchSize int) *ResendFailedJob {
	return &ResendFailedJob{resender: resender, batchSize: batchSize}
}

func (j *ResendFailedJob) Name() string { return JobResendFailed }

func (j *ResendFailedJob) Run(ctx context.Context, run *JobRun) error {
	ctx = ordersync.WithActor(ctx, cronActor)
	res, err := j.resender.ResendFailed(ctx, j.batchSize)
	if err != nil {
		return err
	}
	processed, failed := len(res.ProcessedIDs), len(res.FailedIDs)
	if processed+failed == 0 {
		run.Complete(0, 0, 0)
		return nil
	}
	run.Complete(processed+failed, processed, failed)
	return nil
}

// ActivityCleaner prunes old activity log days
type ActivityCleaner interface {
	Cleanup(ctx context.Context, daysToKeep int) (activitylog.CleanupResult, error)
}

// ActivityCleanupJob applies the retention policy of the activity log
type ActivityCleanupJob struct {
	cleaner    ActivityCleaner
	daysToKeep int
}

// NewActivityCleanupJob creates the job
func NewActivityCleanupJob(cleaner ActivityCleaner, daysToKeep int) *ActivityCleanupJob {
	return &ActivityCleanupJob{cleaner: cleaner, daysToKeep: daysToKeep}
}

func (j *ActivityCleanupJob) Name() string { return JobActivityCleanup }

func (j *ActivityCleanupJob) Run(ctx context.Context, run *JobRun) error {
	res, err := j.cleaner.Cleanup(ctx, j.daysToKeep)
	if err != nil {
		return err
	}
	removed := res.DaysRemoved + res.LegacyFilesRemoved
	run.Complete(removed+res.DaysKept, removed, res.DaysKept)
	return nil
}

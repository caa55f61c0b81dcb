package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"visa-portal/internal/common/config"
	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
)

// JobHandler completes or fails the job itself; a returned error is only
// reported.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// JobRecorder receives one observation per handled job.
type JobRecorder interface {
	RecordJob(ctx context.Context, taskType, status string, duration time.Duration)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. The zbc client is shared and is
// not closed by Stop.
func NewWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler JobHandler,
	recorder JobRecorder,
	log logger.Logger,
) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	step := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, recorder, log)).
		MaxJobsActive(wcfg.MaxJobsActive)
	if wcfg.Timeout > 0 {
		step = step.Timeout(config.GetDuration(wcfg.Timeout))
	}

	w := &CamundaWorker{worker: step.Open(), logger: log, taskType: taskType}
	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return w
}

// Instrument wraps a handler with the worker metrics and error logging.
func Instrument(taskType string, handler JobHandler, recorder JobRecorder, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		err := handler.Handle(client, job)
		elapsed := time.Since(start)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())

		status := "completed"
		if err != nil {
			status = "failed"
			code := string(errors.ErrCodeInternal)
			if stdErr, ok := errors.As(err); ok {
				code = string(stdErr.Code)
			}
			metrics.WorkerJobsFailed.WithLabelValues(taskType, code).Inc()
			log.Error("handler returned error", map[string]interface{}{
				"jobKey":    job.Key,
				"errorCode": code,
				"error":     err.Error(),
			})
		} else {
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		}
		if recorder != nil {
			recorder.RecordJob(context.Background(), taskType, status, elapsed)
		}
	}
}

func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}

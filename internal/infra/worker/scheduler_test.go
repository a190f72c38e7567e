package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-digest/internal/domain/entity"
	"news-digest/internal/infra/notifier"
	"news-digest/internal/usecase/digest"
	"news-digest/internal/usecase/schedule"
)

type stubRunner struct {
	mu          sync.Mutex
	frequencies []entity.Frequency
	dueCalls    int
	batchErr    error
	dueErr      error
	deadline    time.Duration
	block       chan struct{}
}

func (r *stubRunner) RunFrequency(ctx context.Context, freq entity.Frequency) (*schedule.BatchStats, error) {
	r.mu.Lock()
	r.frequencies = append(r.frequencies, freq)
	if d, ok := ctx.Deadline(); ok {
		r.deadline = time.Until(d)
	}
	r.mu.Unlock()
	if r.batchErr != nil {
		return nil, r.batchErr
	}
	return &schedule.BatchStats{
		Frequency: freq, Users: 2, Sent: 1, Failed: 1,
		Failures: []schedule.UserFailure{{UserID: "u2", Stage: digest.StageDeliver, Reason: "smtp down"}},
	}, nil
}

func (r *stubRunner) RunDue(ctx context.Context) (*schedule.JobStats, error) {
	r.mu.Lock()
	r.dueCalls++
	if d, ok := ctx.Deadline(); ok {
		r.deadline = time.Until(d)
	}
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	return &schedule.JobStats{Claimed: 1, Done: 1}, r.dueErr
}

func newTestScheduler(t *testing.T, r Runner) (*Scheduler, *Metrics) {
	t.Helper()
	m := NewMetrics()
	s, err := NewScheduler(r, DefaultConfig(), m, discardLogger())
	require.NoError(t, err)
	return s, m
}

func TestScheduler_RunTask(t *testing.T) {
	r := &stubRunner{}
	s, m := newTestScheduler(t, r)

	require.NoError(t, s.RunTask(context.Background(), TaskDailyBatch))
	require.NoError(t, s.RunTask(context.Background(), TaskWeeklyBatch))
	require.NoError(t, s.RunTask(context.Background(), TaskJobPoll))

	assert.Equal(t, []entity.Frequency{entity.FrequencyDaily, entity.FrequencyWeekly}, r.frequencies)
	assert.Equal(t, 1, r.dueCalls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRunsTotal.WithLabelValues(TaskDailyBatch, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRunsTotal.WithLabelValues(TaskJobPoll, "success")))
}

func TestScheduler_RunTaskTimeouts(t *testing.T) {
	r := &stubRunner{}
	s, _ := newTestScheduler(t, r)

	require.NoError(t, s.RunTask(context.Background(), TaskJobPoll))
	assert.LessOrEqual(t, r.deadline, DefaultConfig().JobPollTimeout)
	assert.Greater(t, r.deadline, DefaultConfig().JobPollTimeout-time.Minute)

	require.NoError(t, s.RunTask(context.Background(), TaskDailyBatch))
	assert.Greater(t, r.deadline, DefaultConfig().JobPollTimeout)
}

func TestScheduler_RunTaskFailure(t *testing.T) {
	r := &stubRunner{batchErr: errors.New("list daily subscribers: connection refused")}
	s, m := newTestScheduler(t, r)

	err := s.RunTask(context.Background(), TaskDailyBatch)

	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRunsTotal.WithLabelValues(TaskDailyBatch, "failure")))
}

func TestScheduler_UnknownTask(t *testing.T) {
	s, _ := newTestScheduler(t, &stubRunner{})

	assert.Error(t, s.RunTask(context.Background(), "hourly_batch"))
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeeklySchedule = "sometimes"

	_, err := NewScheduler(&stubRunner{}, cfg, NewMetrics(), discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskWeeklyBatch)
}

func TestScheduler_SkipIfRunning(t *testing.T) {
	r := &stubRunner{block: make(chan struct{})}
	s, m := newTestScheduler(t, r)
	job := s.skipIfRunning(TaskJobPoll, jobFunc(func() {
		_ = s.RunTask(context.Background(), TaskJobPoll)
	}))

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.dueCalls == 1
	}, time.Second, 5*time.Millisecond)

	job.Run() // overlaps the blocked run
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskSkippedTotal.WithLabelValues(TaskJobPoll)))

	close(r.block)
	<-done
	r.block = nil
	job.Run()
	assert.Equal(t, 2, r.dueCalls)
}

func TestScheduler_StartStop(t *testing.T) {
	s, _ := newTestScheduler(t, &stubRunner{})
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.Error(t, s.baseCtx.Err(), "running tasks are cancelled on stop")
}

type jobFunc func()

func (f jobFunc) Run() { f() }

type recordingAlerts struct {
	mu      sync.Mutex
	reports []notifier.Report
}

func (a *recordingAlerts) Notify(_ context.Context, r notifier.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, r)
	return errors.New("webhook down")
}

func (a *recordingAlerts) Name() string { return "recording" }

func TestScheduler_AlertsOnBatchFailures(t *testing.T) {
	r := &stubRunner{}
	s, _ := newTestScheduler(t, r)
	alerts := &recordingAlerts{}
	s.Alerts = alerts

	require.NoError(t, s.RunTask(context.Background(), TaskWeeklyBatch), "alert errors do not fail the task")

	require.Len(t, alerts.reports, 1)
	got := alerts.reports[0]
	assert.Equal(t, TaskWeeklyBatch, got.Task)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, []notifier.Failure{{UserID: "u2", Stage: "deliver", Reason: "smtp down"}}, got.Failures)
}

func TestScheduler_AlertsOnBatchError(t *testing.T) {
	r := &stubRunner{batchErr: errors.New("dial postgres://app:hunter2@db/news: refused")}
	s, _ := newTestScheduler(t, r)
	alerts := &recordingAlerts{}
	s.Alerts = alerts

	require.Error(t, s.RunTask(context.Background(), TaskDailyBatch))

	require.Len(t, alerts.reports, 1)
	assert.Equal(t, TaskDailyBatch, alerts.reports[0].Task)
	assert.NotContains(t, alerts.reports[0].Err, "hunter2")
}

func TestScheduler_NoAlertForJobPoll(t *testing.T) {
	r := &stubRunner{dueErr: errors.New("claim failed")}
	s, _ := newTestScheduler(t, r)
	alerts := &recordingAlerts{}
	s.Alerts = alerts

	require.Error(t, s.RunTask(context.Background(), TaskJobPoll))
	assert.Empty(t, alerts.reports)
}

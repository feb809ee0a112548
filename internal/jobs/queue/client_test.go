package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	errs  []error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	i := len(f.tasks)
	f.tasks = append(f.tasks, task)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct {
	queues       []string
	queuesErr    error
	queueInfo    map[string]*asynq.QueueInfo
	queueInfoErr map[string]error
	taskInfo     *asynq.TaskInfo
	taskInfoErr  error
	deleteErr    error

	unpaused []string
	deleted  []string
}

func (f *fakeInspector) Queues() ([]string, error) { return f.queues, f.queuesErr }

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if err := f.queueInfoErr[queue]; err != nil {
		return nil, err
	}
	if info, ok := f.queueInfo[queue]; ok {
		return info, nil
	}
	return &asynq.QueueInfo{Queue: queue}, nil
}

func (f *fakeInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	return f.taskInfo, f.taskInfoErr
}

func (f *fakeInspector) DeleteTask(queue, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeInspector) PauseQueue(queue string) error { return nil }

func (f *fakeInspector) UnpauseQueue(queue string) error {
	f.unpaused = append(f.unpaused, queue)
	return nil
}

func (f *fakeInspector) DeleteAllPendingTasks(queue string) (int, error)   { return 0, nil }
func (f *fakeInspector) DeleteAllScheduledTasks(queue string) (int, error) { return 0, nil }
func (f *fakeInspector) DeleteAllRetryTasks(queue string) (int, error)     { return 0, nil }
func (f *fakeInspector) Close() error                                      { return nil }

func newTestClient(t *testing.T, enq *fakeEnqueuer, ins *fakeInspector) *client {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return &client{log: log, enqueuer: enq, inspector: ins}
}

func TestEnqueueResumesPausedQueue(t *testing.T) {
	enq := &fakeEnqueuer{}
	ins := &fakeInspector{queueInfo: map[string]*asynq.QueueInfo{
		QueueDocumentProcessing: {Queue: QueueDocumentProcessing, Paused: true},
	}}
	c := newTestClient(t, enq, ins)

	_, err := c.EnqueueDocumentProcessing(context.Background(), uuid.New(), uuid.New(), "contract.pdf", "sets/x/contract.pdf", ForceNewRun)
	require.NoError(t, err)
	assert.Equal(t, []string{QueueDocumentProcessing}, ins.unpaused)
	assert.Len(t, enq.tasks, 1)
}

func TestDedupeConflictWithLiveTaskIsCovered(t *testing.T) {
	enq := &fakeEnqueuer{errs: []error{asynq.ErrTaskIDConflict}}
	ins := &fakeInspector{taskInfo: &asynq.TaskInfo{State: asynq.TaskStatePending}}
	c := newTestClient(t, enq, ins)

	docID := uuid.New()
	jobID, err := c.EnqueueDocumentProcessing(context.Background(), docID, uuid.New(), "contract.pdf", "sets/x/contract.pdf", DedupeByDocument)
	require.NoError(t, err)
	assert.Equal(t, DocumentJobIDDeduped(docID), jobID)
	assert.Len(t, enq.tasks, 1, "a live task covers the enqueue")
	assert.Empty(t, ins.deleted)
}

func TestDedupeConflictWithFinishedTaskReenqueues(t *testing.T) {
	for _, state := range []asynq.TaskState{asynq.TaskStateCompleted, asynq.TaskStateArchived} {
		t.Run(state.String(), func(t *testing.T) {
			enq := &fakeEnqueuer{errs: []error{asynq.ErrTaskIDConflict}}
			ins := &fakeInspector{taskInfo: &asynq.TaskInfo{State: state}}
			c := newTestClient(t, enq, ins)

			docID := uuid.New()
			jobID, err := c.EnqueueDocumentProcessing(context.Background(), docID, uuid.New(), "contract.pdf", "sets/x/contract.pdf", DedupeByDocument)
			require.NoError(t, err)
			assert.Equal(t, DocumentJobIDDeduped(docID), jobID)
			assert.Equal(t, []string{jobID}, ins.deleted, "retained task id must be reclaimed")
			assert.Len(t, enq.tasks, 2, "reclaiming frees the id for a fresh run")
		})
	}
}

func TestDedupeConflictAfterRetentionExpiryReenqueues(t *testing.T) {
	enq := &fakeEnqueuer{errs: []error{asynq.ErrTaskIDConflict}}
	ins := &fakeInspector{taskInfoErr: asynq.ErrTaskNotFound}
	c := newTestClient(t, enq, ins)

	_, err := c.EnqueueDocumentProcessing(context.Background(), uuid.New(), uuid.New(), "contract.pdf", "sets/x/contract.pdf", DedupeByDocument)
	require.NoError(t, err)
	assert.Empty(t, ins.deleted)
	assert.Len(t, enq.tasks, 2)
}

func TestForceNewRunConflictIsError(t *testing.T) {
	enq := &fakeEnqueuer{errs: []error{asynq.ErrTaskIDConflict}}
	c := newTestClient(t, enq, &fakeInspector{})

	_, err := c.EnqueueDocumentProcessing(context.Background(), uuid.New(), uuid.New(), "contract.pdf", "sets/x/contract.pdf", ForceNewRun)
	require.ErrorIs(t, err, asynq.ErrTaskIDConflict)
	assert.Len(t, enq.tasks, 1)
}

func TestGetQueueStatsReportsZerosForMissingQueues(t *testing.T) {
	ins := &fakeInspector{
		queues: []string{QueueDocumentProcessing},
		queueInfo: map[string]*asynq.QueueInfo{
			QueueDocumentProcessing: {Queue: QueueDocumentProcessing, Pending: 4, Active: 1},
		},
	}
	c := newTestClient(t, &fakeEnqueuer{}, ins)

	stats, err := c.GetQueueStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 4, stats[0].Waiting)
	assert.Equal(t, 1, stats[0].Active)
	assert.Equal(t, QueueStats{Queue: QueueChunkEmbedding}, stats[1])
	assert.Equal(t, QueueStats{Queue: QueueReportGeneration}, stats[2])
}

func TestGetQueueStatsPropagatesBrokerErrors(t *testing.T) {
	brokerErr := errors.New("connection refused")

	c := newTestClient(t, &fakeEnqueuer{}, &fakeInspector{queuesErr: brokerErr})
	_, err := c.GetQueueStats(context.Background())
	require.ErrorIs(t, err, brokerErr)

	ins := &fakeInspector{
		queues:       []string{QueueDocumentProcessing},
		queueInfoErr: map[string]error{QueueDocumentProcessing: brokerErr},
	}
	c = newTestClient(t, &fakeEnqueuer{}, ins)
	_, err = c.GetQueueStats(context.Background())
	require.ErrorIs(t, err, brokerErr)
}

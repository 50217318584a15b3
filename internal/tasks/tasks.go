package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"asr-worker-go/internal/logger"
)

var log = logger.New().WithComponent("tasks")

// ErrBusy is returned when a task is submitted while another is in flight.
var ErrBusy = errors.New("the worker is currently processing a task")

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = errors.New("task not found")

// Status is the lifecycle state of a task.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusError      Status = "ERROR"
)

// Task tracks one accepted transcription job. Mutated in place by the
// running job, retained until explicitly deleted. Result holds the output
// reference once the task is DONE.
type Task struct {
	ID        string `json:"id"`
	InputURI  string `json:"input_uri"`
	OutputURI string `json:"output_uri"`
	Status    Status `json:"status"`
	Result    string `json:"result,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// PipelineFunc runs the full pipeline for one asset and returns the
// reference to where the artifacts ended up.
type PipelineFunc func(ctx context.Context, inputURI, outputURI string) (string, error)

// Manager is the single-slot admission gate in front of the pipeline. The
// loaded model is not safe for concurrent inference, so at most one task may
// be in flight process-wide; the busy check and task creation are one atomic
// operation under the mutex.
type Manager struct {
	mu      sync.Mutex
	all     map[string]*Task
	current *Task
	run     PipelineFunc
}

func NewManager(run PipelineFunc) *Manager {
	return &Manager{
		all: make(map[string]*Task),
		run: run,
	}
}

// Submit admits a new task unless one is already in flight. The accepted
// task starts in CREATED and flips to PROCESSING just before the pipeline
// starts in the background.
func (m *Manager) Submit(inputURI, outputURI string) (Task, error) {
	m.mu.Lock()
	if m.current != nil && !isTerminal(m.current.Status) {
		m.mu.Unlock()
		return Task{}, ErrBusy
	}
	task := &Task{
		ID:        uuid.New().String(),
		InputURI:  inputURI,
		OutputURI: outputURI,
		Status:    StatusCreated,
	}
	m.all[task.ID] = task
	m.current = task
	snapshot := *task
	m.mu.Unlock()

	go m.process(task)
	return snapshot, nil
}

// process runs the pipeline for one task and records the outcome. The error
// message is captured verbatim on failure.
func (m *Manager) process(task *Task) {
	m.setStatus(task, StatusProcessing, "", "")
	log.WithField("task_id", task.ID).Info("task processing started")

	result, err := m.run(context.Background(), task.InputURI, task.OutputURI)
	if err != nil {
		log.WithField("task_id", task.ID).WithError(err).Error("task failed")
		m.setStatus(task, StatusError, "", err.Error())
		return
	}
	log.WithField("task_id", task.ID).WithField("result", result).Info("task done")
	m.setStatus(task, StatusDone, result, "")
}

func (m *Manager) setStatus(task *Task, status Status, result, errMsg string) {
	m.mu.Lock()
	task.Status = status
	task.Result = result
	task.ErrorMsg = errMsg
	m.mu.Unlock()
}

// Get returns a snapshot of the task with the given id.
func (m *Manager) Get(id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.all[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *task, nil
}

// List returns snapshots of all tracked tasks.
func (m *Manager) List() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.all))
	for _, task := range m.all {
		out = append(out, *task)
	}
	return out
}

// Delete removes a tracked task. A running task keeps running; only its
// bookkeeping entry disappears.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.all[id]; !ok {
		return ErrNotFound
	}
	delete(m.all, id)
	return nil
}

// Busy reports whether a task is currently in flight.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !isTerminal(m.current.Status)
}

// Drain blocks until no task is in flight, polling at the given interval.
// Called on shutdown before the model resource is released: shutdown must
// never tear down an in-flight job.
func (m *Manager) Drain(interval time.Duration) {
	stillBusy := errors.New("still busy")
	_ = backoff.Retry(func() error {
		if m.Busy() {
			return stillBusy
		}
		return nil
	}, backoff.NewConstantBackOff(interval))
}

func isTerminal(s Status) bool {
	return s == StatusDone || s == StatusError
}

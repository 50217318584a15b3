package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/tasks"
)

// statusToHTTP maps a task's pipeline status onto the HTTP status returned
// when polling it.
var statusToHTTP = map[tasks.Status]int{
	tasks.StatusCreated:    http.StatusCreated,
	tasks.StatusProcessing: http.StatusAccepted,
	tasks.StatusDone:       http.StatusOK,
	tasks.StatusError:      http.StatusInternalServerError,
}

// Manager is the task-manager surface the HTTP layer depends on.
type Manager interface {
	Submit(inputURI, outputURI string) (tasks.Task, error)
	Get(id string) (tasks.Task, error)
	List() []tasks.Task
	Delete(id string) error
	Busy() bool
}

// Server exposes the task admission and status endpoints.
type Server struct {
	mgr Manager
}

func NewServer(mgr Manager) *Server {
	return &Server{mgr: mgr}
}

// Mux wires up all routes.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleDeleteTask)
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	logger.New().WithRequest(r).Debug("received ping")
	fmt.Fprint(w, "pong")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.mgr.Busy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"msg": "The worker is currently processing a task. Try again later!",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msg": "The worker is available!"})
}

type createTaskRequest struct {
	InputURI  string `json:"input_uri"`
	OutputURI string `json:"output_uri"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "create_task")

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reqLog.WithField("error", err.Error()).Warn("malformed task request")
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "malformed request body"})
		return
	}
	if req.InputURI == "" {
		reqLog.Warn("missing input_uri")
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "input_uri is required"})
		return
	}

	task, err := s.mgr.Submit(req.InputURI, req.OutputURI)
	if errors.Is(err, tasks.ErrBusy) {
		reqLog.Info("task rejected, worker busy")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"msg": "The worker is currently processing a task. Try again later!",
		})
		return
	}
	if err != nil {
		reqLog.WithField("error", err.Error()).Error("could not create task")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"msg": "could not create task"})
		return
	}
	reqLog.WithField("task_id", task.ID).Info("task accepted")
	writeJSON(w, http.StatusCreated, map[string]any{
		"data":    task,
		"msg":     "Successfully added task",
		"task_id": task.ID,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": s.mgr.List()})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.mgr.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": fmt.Sprintf("Task %s not found", id)})
		return
	}
	writeJSON(w, statusToHTTP[task.Status], map[string]any{"data": task})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mgr.Delete(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": fmt.Sprintf("Task %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"msg":     fmt.Sprintf("Successfully deleted task %s", id),
		"task_id": id,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.New().WithComponent("api").WithField("error", err.Error()).Error("failed to write response")
	}
}

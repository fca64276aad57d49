// Package agentlevel implements the agent-level tools: the handful of
// tool names the model can call that are dispatched inside the agentic
// loop itself rather than sent to the tool host. They mutate in-loop state
// (plan mode, the task board) or delegate to a narrower existing tool
// (process management, skill content) instead of touching the workspace.
package agentlevel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreforge/agentrun/internal/skills"
	"github.com/coreforge/agentrun/internal/tools/exec"
)

// Result is a tool-shaped outcome without depending on package agent, so
// agentlevel can be imported by it without a cycle (the loop adapts Result
// into its own ToolResult type at the call site).
type Result struct {
	Content string
	IsError bool
}

// TaskStatus is the lifecycle state of one board task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskStopped TaskStatus = "stopped"
)

// Task is one entry on a session's in-loop task board, created by
// task_create/spawn_task and mutated by task_update/task_stop.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	Output    string     `json:"output,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Question is a pending user_question the loop has surfaced; answered
// out-of-band by whatever channel is driving the session (CLI prompt,
// chat reply) and consumed on the next turn.
type Question struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionState struct {
	mu              sync.Mutex
	tasks           map[string]*Task
	taskOrder       []string
	planMode        bool
	pendingQuestion *Question
	nextID          int
}

func (s *sessionState) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// Dispatcher handles every agent-level tool call for a set of sessions. A
// nil *Dispatcher is valid and makes every dispatch fail with a clear
// error instead of panicking, so the loop can be wired without one during
// tests that don't exercise C6.
type Dispatcher struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	skills  *skills.Manager   // optional; nil disables the skill handler
	process *exec.ProcessTool // optional; nil disables kill_shell
}

// NewDispatcher creates a Dispatcher. skillsMgr and processTool may be nil
// to disable the handlers that depend on them.
func NewDispatcher(skillsMgr *skills.Manager, processTool *exec.ProcessTool) *Dispatcher {
	return &Dispatcher{
		sessions: make(map[string]*sessionState),
		skills:   skillsMgr,
		process:  processTool,
	}
}

func (d *Dispatcher) state(sessionID string) *sessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		s = &sessionState{tasks: make(map[string]*Task)}
		d.sessions[sessionID] = s
	}
	return s
}

// IsPlanMode reports whether enter_plan_mode has put sessionID into plan
// mode without a matching exit_plan_mode yet.
func (d *Dispatcher) IsPlanMode(sessionID string) bool {
	if d == nil {
		return false
	}
	s := d.state(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planMode
}

func ok(v interface{}) (*Result, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &Result{Content: string(payload)}, nil
}

func errResult(message string) *Result {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &Result{Content: message, IsError: true}
	}
	return &Result{Content: string(payload), IsError: true}
}

// Dispatch executes one agent-level tool call, scoped to sessionID.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, name string, params json.RawMessage) (*Result, error) {
	if d == nil {
		return errResult(fmt.Sprintf("agent-level tool %q has no dispatcher configured", name)), nil
	}
	s := d.state(sessionID)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user_question":
		return d.userQuestion(s, params)
	case "task_create", "spawn_task":
		return d.taskCreate(s, params)
	case "task_update":
		return d.taskUpdate(s, params)
	case "task_get":
		return d.taskGet(s, params)
	case "task_list":
		return d.taskList(s)
	case "task_output":
		return d.taskOutput(s, params)
	case "task_stop":
		return d.taskStop(s, params)
	case "enter_plan_mode":
		s.mu.Lock()
		s.planMode = true
		s.mu.Unlock()
		return ok(map[string]interface{}{"plan_mode": true})
	case "exit_plan_mode":
		s.mu.Lock()
		s.planMode = false
		s.mu.Unlock()
		return ok(map[string]interface{}{"plan_mode": false})
	case "skill":
		return d.skill(params)
	case "kill_shell":
		return d.killShell(ctx, params)
	case "think_deeply":
		return ok(map[string]interface{}{"acknowledged": true})
	default:
		return errResult(fmt.Sprintf("unknown agent-level tool: %s", name)), nil
	}
}

func (d *Dispatcher) userQuestion(s *sessionState, params json.RawMessage) (*Result, error) {
	var input struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Prompt) == "" {
		return errResult("prompt is required"), nil
	}
	s.mu.Lock()
	q := &Question{ID: s.newID("q"), Prompt: input.Prompt, CreatedAt: time.Now()}
	s.pendingQuestion = q
	s.mu.Unlock()
	return ok(map[string]interface{}{"question_id": q.ID, "status": "awaiting_user"})
}

func (d *Dispatcher) taskCreate(s *sessionState, params json.RawMessage) (*Result, error) {
	var input struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Title) == "" {
		return errResult("title is required"), nil
	}
	s.mu.Lock()
	now := time.Now()
	t := &Task{ID: s.newID("task"), Title: input.Title, Status: TaskPending, CreatedAt: now, UpdatedAt: now}
	s.tasks[t.ID] = t
	s.taskOrder = append(s.taskOrder, t.ID)
	s.mu.Unlock()
	return ok(t)
}

func (d *Dispatcher) taskUpdate(s *sessionState, params json.RawMessage) (*Result, error) {
	var input struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[input.TaskID]
	if !found {
		return errResult("task not found: " + input.TaskID), nil
	}
	if input.Status != "" {
		t.Status = TaskStatus(input.Status)
	}
	if input.Output != "" {
		t.Output = input.Output
	}
	t.UpdatedAt = time.Now()
	return ok(t)
}

func (d *Dispatcher) taskGet(s *sessionState, params json.RawMessage) (*Result, error) {
	var input struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[input.TaskID]
	if !found {
		return errResult("task not found: " + input.TaskID), nil
	}
	return ok(t)
}

func (d *Dispatcher) taskList(s *sessionState) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]*Task, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		tasks = append(tasks, s.tasks[id])
	}
	return ok(map[string]interface{}{"tasks": tasks})
}

func (d *Dispatcher) taskOutput(s *sessionState, params json.RawMessage) (*Result, error) {
	var input struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[input.TaskID]
	if !found {
		return errResult("task not found: " + input.TaskID), nil
	}
	return ok(map[string]interface{}{"task_id": t.ID, "output": t.Output})
}

func (d *Dispatcher) taskStop(s *sessionState, params json.RawMessage) (*Result, error) {
	var input struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[input.TaskID]
	if !found {
		return errResult("task not found: " + input.TaskID), nil
	}
	t.Status = TaskStopped
	t.UpdatedAt = time.Now()
	return ok(t)
}

func (d *Dispatcher) skill(params json.RawMessage) (*Result, error) {
	if d.skills == nil {
		return errResult("no skills manager configured"), nil
	}
	var input struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Name) == "" {
		return errResult("name is required"), nil
	}
	if _, found := d.skills.GetEligible(input.Name); !found {
		return errResult("skill not eligible or not found: " + input.Name), nil
	}
	content, err := d.skills.LoadContent(input.Name)
	if err != nil {
		return errResult(fmt.Sprintf("load skill %q: %v", input.Name, err)), nil
	}
	return &Result{Content: content}, nil
}

func (d *Dispatcher) killShell(ctx context.Context, params json.RawMessage) (*Result, error) {
	if d.process == nil {
		return errResult("no process manager configured"), nil
	}
	var input struct {
		ProcessID string `json:"process_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.ProcessID) == "" {
		return errResult("process_id is required"), nil
	}
	killParams, _ := json.Marshal(map[string]string{"action": "kill", "process_id": input.ProcessID})
	res, err := d.process.Execute(ctx, killParams)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return &Result{Content: res.Content, IsError: res.IsError}, nil
}

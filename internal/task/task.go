package task

import "context"

// PullTask is one background model-pull job. SessionID names the chat
// session that should receive the terminal status message.
type PullTask struct {
	ID        string `json:"id"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
}

// PullRunner accepts a pull task for fire-and-forget execution. Which
// runner is in use is a configuration decision made at bootstrap, never
// inferred from the ambient process state.
type PullRunner interface {
	Submit(ctx context.Context, t PullTask) error
}

// GoRunner executes pull tasks on a goroutine within the process. It is
// the runner used when no message broker is configured.
type GoRunner struct {
	exec func(ctx context.Context, t PullTask)
}

func NewGoRunner(exec func(ctx context.Context, t PullTask)) *GoRunner {
	return &GoRunner{exec: exec}
}

func (r *GoRunner) Submit(ctx context.Context, t PullTask) error {
	// The task must outlive the request that submitted it.
	go r.exec(context.WithoutCancel(ctx), t)
	return nil
}

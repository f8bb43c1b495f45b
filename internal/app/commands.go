package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"localchat/internal/task"
)

const (
	helpText = "Possible commands:\n- /pull <model_name>"

	invalidCommandText = "Invalid command, please use one of the following:\n- /help\n- /pull <model_name>"
)

// runCommand handles a leading-slash turn locally; no inference happens.
// The returned text is persisted as the assistant side of the turn.
func (s *ChatService) runCommand(ctx context.Context, sessionID, input string) string {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/help":
		return helpText
	case "/pull":
		if len(fields) < 2 {
			return invalidCommandText
		}
		if len(fields) > 2 && fields[2] == "async" {
			return s.SchedulePull(ctx, sessionID, fields[1])
		}
		return s.puller.Pull(ctx, fields[1], false, nil)
	default:
		return invalidCommandText
	}
}

// SchedulePull submits a fire-and-forget pull task; the terminal status
// lands in the session as an assistant message once the worker is done.
func (s *ChatService) SchedulePull(ctx context.Context, sessionID, modelName string) string {
	if s.runner == nil {
		return "Background pulls are not configured."
	}
	t := task.PullTask{
		ID:        uuid.NewString(),
		Model:     modelName,
		SessionID: sessionID,
	}
	if err := s.runner.Submit(ctx, t); err != nil {
		s.logger.Error("schedule pull failed",
			zap.String("model", modelName),
			zap.Error(err),
		)
		return fmt.Sprintf("Failed to schedule pull of %s.", modelName)
	}
	return fmt.Sprintf("Pull of %s scheduled (task %s).", modelName, t.ID)
}

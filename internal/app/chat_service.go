package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"localchat/internal/ai"
	"localchat/internal/cache"
	"localchat/internal/model"
	"localchat/internal/repository"
	"localchat/internal/task"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyTurn        = errors.New("turn has no content")
	ErrAudioUnavailable = errors.New("audio transcription is not configured")
)

const sessionIDLayout = "2006-01-02 15:04:05"

// ChatBackend is the capability set one inference backend implements.
// Which backend answers a turn is a wiring decision, not inheritance.
type ChatBackend interface {
	Chat(ctx context.Context, model string, messages []ai.ChatMessage) (string, error)
}

type ModelPuller interface {
	Pull(ctx context.Context, model string, stream bool, onProgress func(string)) string
	ListModels(ctx context.Context) []string
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type DocumentRetriever interface {
	SimilaritySearch(ctx context.Context, query string, numDocuments int) ([]schema.Document, error)
}

// ChatService orchestrates one user turn: routing between slash
// commands, plain text, image and audio inputs, calling the inference
// backend and persisting both sides of the exchange.
type ChatService struct {
	repo        *repository.MessageRepository
	cache       *cache.TranscriptCache
	backend     ChatBackend
	puller      ModelPuller
	retriever   DocumentRetriever
	transcriber Transcriber
	runner      task.PullRunner

	defaultModel  string
	memoryLength  int
	retrievedDocs int
	logger        *zap.Logger
	now           func() time.Time
}

type ChatServiceDeps struct {
	Repo        *repository.MessageRepository
	Cache       *cache.TranscriptCache // nil disables the transcript cache
	Backend     ChatBackend
	Puller      ModelPuller
	Retriever   DocumentRetriever
	Transcriber Transcriber // nil rejects audio turns
	PullRunner  task.PullRunner

	DefaultModel  string
	MemoryLength  int
	RetrievedDocs int
	Logger        *zap.Logger
	Now           func() time.Time
}

func NewChatService(deps ChatServiceDeps) *ChatService {
	if deps.MemoryLength <= 0 {
		deps.MemoryLength = 6
	}
	if deps.RetrievedDocs <= 0 {
		deps.RetrievedDocs = 3
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ChatService{
		repo:          deps.Repo,
		cache:         deps.Cache,
		backend:       deps.Backend,
		puller:        deps.Puller,
		retriever:     deps.Retriever,
		transcriber:   deps.Transcriber,
		runner:        deps.PullRunner,
		defaultModel:  deps.DefaultModel,
		memoryLength:  deps.MemoryLength,
		retrievedDocs: deps.RetrievedDocs,
		logger:        deps.Logger,
		now:           deps.Now,
	}
}

// TurnInput carries everything one user turn can hold. At most one of
// the command / doc-chat / image / plain branches executes, chosen by
// precedence in HandleTurn.
type TurnInput struct {
	State   SessionState
	Text    string
	Image   []byte
	Audio   []byte
	Model   string
	DocChat bool
}

type TurnResult struct {
	State     SessionState    `json:"state"`
	SessionID string          `json:"session_id"`
	Reply     string          `json:"reply"`
	Messages  []model.Message `json:"messages"`
}

// HandleTurn resolves the target session, routes the turn and persists
// both sides of the exchange. Transport, extraction and transcription
// failures abort the turn before anything is written; application-level
// model errors are persisted as the conversational reply.
func (s *ChatService) HandleTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && len(input.Audio) == 0 {
		return nil, ErrEmptyTurn
	}

	state := input.State.Normalize()
	if state.Selected == NewSessionID && state.PendingNew == "" {
		state = state.WithPendingNew(s.now().Format(sessionIDLayout))
	}
	sessionID := state.ActiveSession()

	modelName := strings.TrimSpace(input.Model)
	if modelName == "" {
		modelName = s.defaultModel
	}

	if strings.HasPrefix(text, "/") {
		reply := s.runCommand(ctx, sessionID, text)
		if err := s.saveText(ctx, sessionID, model.SenderUser, text); err != nil {
			return nil, err
		}
		if err := s.saveText(ctx, sessionID, model.SenderAssistant, reply); err != nil {
			return nil, err
		}
		return s.finishTurn(ctx, state, sessionID, reply)
	}

	userText := text
	if len(input.Audio) > 0 {
		if s.transcriber == nil {
			return nil, ErrAudioUnavailable
		}
		transcript, err := s.transcriber.Transcribe(ctx, input.Audio)
		if err != nil {
			return nil, fmt.Errorf("transcribe audio failed: %w", err)
		}
		if userText == "" {
			userText = transcript
		} else {
			userText = userText + "\n" + transcript
		}
	}
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyTurn
	}

	history, err := s.loadHistory(sessionID)
	if err != nil {
		return nil, err
	}

	var reply string
	switch {
	case input.DocChat:
		reply, err = s.documentChat(ctx, modelName, history, userText)
	case len(input.Image) > 0:
		reply, err = s.imageChat(ctx, modelName, history, userText, input.Image)
	default:
		reply, err = s.backend.Chat(ctx, modelName, append(history, ai.ChatMessage{
			Role:    model.SenderUser,
			Content: userText,
		}))
	}
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(input.Audio) > 0 {
		if err := s.saveBlob(ctx, sessionID, model.TypeAudio, input.Audio); err != nil {
			return nil, err
		}
	}
	if len(input.Image) > 0 {
		if err := s.saveBlob(ctx, sessionID, model.TypeImage, input.Image); err != nil {
			return nil, err
		}
	}
	if err := s.saveText(ctx, sessionID, model.SenderUser, userText); err != nil {
		return nil, err
	}
	if err := s.saveText(ctx, sessionID, model.SenderAssistant, reply); err != nil {
		return nil, err
	}

	return s.finishTurn(ctx, state, sessionID, reply)
}

func (s *ChatService) documentChat(ctx context.Context, modelName string, history []ai.ChatMessage, userText string) (string, error) {
	docs, err := s.retriever.SimilaritySearch(ctx, userText, s.retrievedDocs)
	if err != nil {
		return "", fmt.Errorf("similarity search failed: %w", err)
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.PageContent)
	}
	prompt := fmt.Sprintf(
		"Answer the user question based on this context: %s\nUser Question: %s",
		strings.Join(parts, "\n"),
		userText,
	)
	return s.backend.Chat(ctx, modelName, append(history, ai.ChatMessage{
		Role:    model.SenderUser,
		Content: prompt,
	}))
}

func (s *ChatService) imageChat(ctx context.Context, modelName string, history []ai.ChatMessage, userText string, image []byte) (string, error) {
	return s.backend.Chat(ctx, modelName, append(history, ai.ChatMessage{
		Role:    model.SenderUser,
		Content: userText,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
	}))
}

func (s *ChatService) finishTurn(ctx context.Context, state SessionState, sessionID, reply string) (*TurnResult, error) {
	state = state.AfterTurn()
	messages, err := s.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &TurnResult{
		State:     state,
		SessionID: sessionID,
		Reply:     reply,
		Messages:  messages,
	}, nil
}

// loadHistory maps the last k text messages onto {role, content} pairs,
// oldest first.
func (s *ChatService) loadHistory(sessionID string) ([]ai.ChatMessage, error) {
	recent, err := s.repo.ListRecentText(sessionID, s.memoryLength)
	if err != nil {
		return nil, err
	}
	history := make([]ai.ChatMessage, 0, len(recent)+1)
	for _, item := range recent {
		role := item.SenderType
		if role == "" {
			role = model.SenderUser
		}
		history = append(history, ai.ChatMessage{
			Role:    role,
			Content: item.TextContent,
		})
	}
	return history, nil
}

func (s *ChatService) ListSessions() ([]string, error) {
	return s.repo.ListSessionIDs()
}

func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" || sessionID == NewSessionID {
		return ErrInvalidInput
	}
	if err := s.repo.DeleteSession(sessionID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.DeleteTranscript(ctx, sessionID)
	}
	return nil
}

// GetMessages returns the session's full transcript in creation order,
// served from the cache when it is present and clean.
func (s *ChatService) GetMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, sessionID); err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetTranscript(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.repo.ListAll(sessionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, sessionID); err == nil && !dirty {
			_ = s.cache.SetTranscript(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) Models(ctx context.Context) []string {
	return s.puller.ListModels(ctx)
}

// PullModel runs a synchronous pull and returns its status text.
func (s *ChatService) PullModel(ctx context.Context, modelName string, stream bool, onProgress func(string)) string {
	return s.puller.Pull(ctx, modelName, stream, onProgress)
}

func (s *ChatService) saveText(ctx context.Context, sessionID, sender, text string) error {
	s.invalidate(ctx, sessionID)
	return s.repo.AppendText(sessionID, sender, text)
}

func (s *ChatService) saveBlob(ctx context.Context, sessionID, kind string, blob []byte) error {
	s.invalidate(ctx, sessionID)
	if kind == model.TypeAudio {
		return s.repo.AppendAudio(sessionID, model.SenderUser, blob)
	}
	return s.repo.AppendImage(sessionID, model.SenderUser, blob)
}

func (s *ChatService) invalidate(ctx context.Context, sessionID string) {
	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, sessionID)
		_ = s.cache.DeleteTranscript(ctx, sessionID)
	}
}

package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/schema"

	"localchat/internal/ai"
	"localchat/internal/model"
	"localchat/internal/platform/sqlite"
	"localchat/internal/repository"
	"localchat/internal/task"
)

type fakeBackend struct {
	reply        string
	err          error
	lastModel    string
	lastMessages []ai.ChatMessage
	calls        int
}

func (f *fakeBackend) Chat(_ context.Context, model string, messages []ai.ChatMessage) (string, error) {
	f.calls++
	f.lastModel = model
	f.lastMessages = messages
	return f.reply, f.err
}

type fakePuller struct {
	models     []string
	pullStatus string
	lastModel  string
}

func (f *fakePuller) Pull(_ context.Context, model string, _ bool, _ func(string)) string {
	f.lastModel = model
	return f.pullStatus
}

func (f *fakePuller) ListModels(context.Context) []string { return f.models }

type fakeRetriever struct {
	docs      []schema.Document
	lastQuery string
}

func (f *fakeRetriever) SimilaritySearch(_ context.Context, query string, _ int) ([]schema.Document, error) {
	f.lastQuery = query
	return f.docs, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type fakeRunner struct {
	tasks []task.PullTask
	err   error
}

func (f *fakeRunner) Submit(_ context.Context, t task.PullTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, t)
	return nil
}

type serviceFixture struct {
	service     *ChatService
	repo        *repository.MessageRepository
	backend     *fakeBackend
	puller      *fakePuller
	retriever   *fakeRetriever
	transcriber *fakeTranscriber
	runner      *fakeRunner
}

var fixedNow = func() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

const fixedSessionID = "2024-05-01 12:00:00"

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &serviceFixture{
		repo:        repository.NewMessageRepository(db),
		backend:     &fakeBackend{reply: "hi there"},
		puller:      &fakePuller{models: []string{"llama3"}, pullStatus: "Pull of llama3 finished."},
		retriever:   &fakeRetriever{},
		transcriber: &fakeTranscriber{text: "spoken words"},
		runner:      &fakeRunner{},
	}
	f.service = NewChatService(ChatServiceDeps{
		Repo:          f.repo,
		Backend:       f.backend,
		Puller:        f.puller,
		Retriever:     f.retriever,
		Transcriber:   f.transcriber,
		PullRunner:    f.runner,
		DefaultModel:  "llama3",
		MemoryLength:  6,
		RetrievedDocs: 3,
		Now:           fixedNow,
	})
	return f
}

func TestHandleTurnCreatesSession(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Text:  "Hello",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if result.SessionID != fixedSessionID {
		t.Fatalf("expected session id %q, got %q", fixedSessionID, result.SessionID)
	}
	if result.State.Selected != fixedSessionID || result.State.PendingNew != "" {
		t.Fatalf("expected state collapsed onto new session, got %+v", result.State)
	}
	if result.Reply != "hi there" {
		t.Fatalf("expected backend reply, got %q", result.Reply)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(result.Messages))
	}
	if result.Messages[0].SenderType != model.SenderUser || result.Messages[0].TextContent != "Hello" {
		t.Fatalf("unexpected user message: %+v", result.Messages[0])
	}
	if result.Messages[1].SenderType != model.SenderAssistant || result.Messages[1].TextContent != "hi there" {
		t.Fatalf("unexpected assistant message: %+v", result.Messages[1])
	}
	if f.backend.lastModel != "llama3" {
		t.Fatalf("expected default model, got %q", f.backend.lastModel)
	}

	sessions, err := f.service.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != fixedSessionID {
		t.Fatalf("expected new session listed, got %v", sessions)
	}
}

func TestHandleTurnEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleTurn(context.Background(), TurnInput{Text: "   "})
	if !errors.Is(err, ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}
	if f.backend.calls != 0 {
		t.Fatalf("backend must not run on an empty turn")
	}
}

func TestHandleTurnMemoryWindow(t *testing.T) {
	f := newFixture(t)

	for i := 1; i <= 8; i++ {
		sender := model.SenderUser
		if i%2 == 0 {
			sender = model.SenderAssistant
		}
		if err := f.repo.AppendText("s1", sender, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("AppendText: %v", err)
		}
	}

	_, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState().Select("s1"),
		Text:  "question",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	got := f.backend.lastMessages
	if len(got) != 7 {
		t.Fatalf("expected 6 history turns plus the question, got %d", len(got))
	}
	if got[0].Content != "m3" {
		t.Fatalf("expected window to start at m3, got %q", got[0].Content)
	}
	if got[6].Content != "question" || got[6].Role != model.SenderUser {
		t.Fatalf("expected question as last message, got %+v", got[6])
	}
}

func TestHandleTurnHelpCommand(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Text:  "/help",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if result.Reply != helpText {
		t.Fatalf("expected help text, got %q", result.Reply)
	}
	if f.backend.calls != 0 {
		t.Fatalf("commands must not reach the backend")
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected command and reply persisted, got %d messages", len(result.Messages))
	}
}

func TestHandleTurnInvalidCommand(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Text:  "/bogus",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if result.Reply != invalidCommandText {
		t.Fatalf("expected invalid-command text, got %q", result.Reply)
	}
}

func TestHandleTurnAsyncPullCommand(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Text:  "/pull mistral async",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.HasPrefix(result.Reply, "Pull of mistral scheduled") {
		t.Fatalf("expected scheduled status, got %q", result.Reply)
	}
	if len(f.runner.tasks) != 1 {
		t.Fatalf("expected one submitted task, got %d", len(f.runner.tasks))
	}
	submitted := f.runner.tasks[0]
	if submitted.Model != "mistral" || submitted.SessionID != fixedSessionID {
		t.Fatalf("unexpected task: %+v", submitted)
	}
}

func TestDocumentChatPrompt(t *testing.T) {
	f := newFixture(t)
	f.retriever.docs = []schema.Document{
		{PageContent: "ctx1"},
		{PageContent: "ctx2"},
	}

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State:   NewSessionState(),
		Text:    "What is Go?",
		DocChat: true,
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if f.retriever.lastQuery != "What is Go?" {
		t.Fatalf("expected retrieval by the user question, got %q", f.retriever.lastQuery)
	}
	want := "Answer the user question based on this context: ctx1\nctx2\nUser Question: What is Go?"
	last := f.backend.lastMessages[len(f.backend.lastMessages)-1]
	if last.Content != want {
		t.Fatalf("unexpected prompt:\nwant %q\ngot  %q", want, last.Content)
	}
	// The stored user message is the question, not the synthesized prompt.
	if result.Messages[0].TextContent != "What is Go?" {
		t.Fatalf("expected original question persisted, got %q", result.Messages[0].TextContent)
	}
}

func TestImageTurn(t *testing.T) {
	f := newFixture(t)
	image := []byte{0x01, 0x02, 0x03}

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Text:  "what is in this picture",
		Image: image,
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	last := f.backend.lastMessages[len(f.backend.lastMessages)-1]
	if len(last.Images) != 1 || last.Images[0] != base64.StdEncoding.EncodeToString(image) {
		t.Fatalf("expected base64 image on the last message, got %+v", last.Images)
	}
	if len(result.Messages) != 3 {
		t.Fatalf("expected image, user text and reply persisted, got %d", len(result.Messages))
	}
	if result.Messages[0].MessageType != model.TypeImage {
		t.Fatalf("expected image message first, got %+v", result.Messages[0])
	}
}

func TestAudioTurn(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Audio: []byte{0x0a, 0x0b},
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	last := f.backend.lastMessages[len(f.backend.lastMessages)-1]
	if last.Content != "spoken words" {
		t.Fatalf("expected transcript sent to the model, got %q", last.Content)
	}
	if len(result.Messages) != 3 {
		t.Fatalf("expected audio, transcript and reply persisted, got %d", len(result.Messages))
	}
	if result.Messages[0].MessageType != model.TypeAudio {
		t.Fatalf("expected audio message first, got %+v", result.Messages[0])
	}
	if result.Messages[1].TextContent != "spoken words" {
		t.Fatalf("expected transcript as user text, got %q", result.Messages[1].TextContent)
	}
}

func TestAudioTurnWithoutTranscriber(t *testing.T) {
	f := newFixture(t)
	f.service.transcriber = nil

	_, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Audio: []byte{0x0a},
	})
	if !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("expected ErrAudioUnavailable, got %v", err)
	}
}

func TestTranscriptionFailureAbortsTurn(t *testing.T) {
	f := newFixture(t)
	f.transcriber.err = errors.New("whisper down")

	_, err := f.service.HandleTurn(context.Background(), TurnInput{
		State: NewSessionState(),
		Audio: []byte{0x0a},
	})
	if err == nil {
		t.Fatalf("expected transcription error to propagate")
	}

	messages, listErr := f.repo.ListAll(fixedSessionID)
	if listErr != nil {
		t.Fatalf("ListAll: %v", listErr)
	}
	if len(messages) != 0 {
		t.Fatalf("aborted turn must persist nothing, got %d messages", len(messages))
	}
}

func TestDeleteSessionValidation(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"", "  ", NewSessionID} {
		if err := f.service.DeleteSession(context.Background(), id); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", id, err)
		}
	}
}

func TestSchedulePullWithoutRunner(t *testing.T) {
	f := newFixture(t)
	f.service.runner = nil

	status := f.service.SchedulePull(context.Background(), "s1", "llama3")
	if status != "Background pulls are not configured." {
		t.Fatalf("unexpected status %q", status)
	}
}

func TestSchedulePullSubmitFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("queue down")

	status := f.service.SchedulePull(context.Background(), "s1", "llama3")
	if status != "Failed to schedule pull of llama3." {
		t.Fatalf("unexpected status %q", status)
	}
}

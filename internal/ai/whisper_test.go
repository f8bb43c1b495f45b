package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		audio, _ := io.ReadAll(file)
		if len(audio) == 0 {
			t.Errorf("expected audio bytes in form file")
		}
		if got := r.FormValue("response_format"); got != "json" {
			t.Errorf("expected json response format, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "  hello from audio \n"})
	}))
	defer server.Close()

	transcriber := NewTranscriber(server.URL, 0)
	text, err := transcriber.Transcribe(context.Background(), []byte{0x52, 0x49, 0x46, 0x46})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello from audio" {
		t.Fatalf("expected trimmed transcript, got %q", text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to decode audio"})
	}))
	defer server.Close()

	transcriber := NewTranscriber(server.URL, 0)
	if _, err := transcriber.Transcribe(context.Background(), []byte{0x01}); err == nil {
		t.Fatalf("expected transcription error to propagate")
	}
}

func TestTranscribeEmptyInput(t *testing.T) {
	transcriber := NewTranscriber("http://127.0.0.1:1", 0)
	if _, err := transcriber.Transcribe(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}

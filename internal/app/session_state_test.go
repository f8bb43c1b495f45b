package app

import "testing"

func TestSessionStateNormalize(t *testing.T) {
	state := SessionState{}.Normalize()
	if state.Selected != NewSessionID {
		t.Fatalf("expected selection %q, got %q", NewSessionID, state.Selected)
	}

	state = SessionState{Selected: "2024-05-01 12:00:00"}.Normalize()
	if state.Selected != "2024-05-01 12:00:00" {
		t.Fatalf("normalize must not touch a concrete selection, got %q", state.Selected)
	}
}

func TestSessionStateAfterTurnConsumesPending(t *testing.T) {
	state := NewSessionState().WithPendingNew("2024-05-01 12:00:00").AfterTurn()
	if state.Selected != "2024-05-01 12:00:00" {
		t.Fatalf("expected selection to move onto pending id, got %q", state.Selected)
	}
	if state.PendingNew != "" {
		t.Fatalf("expected pending id consumed, got %q", state.PendingNew)
	}

	state = SessionState{Selected: "existing", PendingNew: "other"}.AfterTurn()
	if state.Selected != "existing" || state.PendingNew != "other" {
		t.Fatalf("AfterTurn must not fire on a concrete selection, got %+v", state)
	}
}

func TestSessionStateAfterDelete(t *testing.T) {
	state := NewSessionState().Select("a").AfterDelete("a")
	if state.Selected != NewSessionID {
		t.Fatalf("expected reset after deleting active session, got %q", state.Selected)
	}

	state = NewSessionState().Select("a").AfterDelete("b")
	if state.Selected != "a" {
		t.Fatalf("deleting another session must keep the selection, got %q", state.Selected)
	}
}

func TestSessionStateReconcile(t *testing.T) {
	state := NewSessionState().Select("gone").Reconcile([]string{"a", "b"})
	if state.Selected != NewSessionID {
		t.Fatalf("expected stale selection reset, got %q", state.Selected)
	}

	state = NewSessionState().Select("a").Reconcile([]string{"a", "b"})
	if state.Selected != "a" {
		t.Fatalf("expected known selection kept, got %q", state.Selected)
	}
}

func TestSessionStateActiveSession(t *testing.T) {
	if got := NewSessionState().ActiveSession(); got != "" {
		t.Fatalf("fresh state has no active session, got %q", got)
	}
	if got := NewSessionState().WithPendingNew("p").ActiveSession(); got != "p" {
		t.Fatalf("expected pending id as active session, got %q", got)
	}
	if got := NewSessionState().Select("a").ActiveSession(); got != "a" {
		t.Fatalf("expected selection as active session, got %q", got)
	}
}

func TestSessionStateHasActiveConversation(t *testing.T) {
	cases := []struct {
		name  string
		state SessionState
		want  bool
	}{
		{"fresh", NewSessionState(), false},
		{"selected", NewSessionState().Select("a"), true},
		{"pending", NewSessionState().WithPendingNew("p"), true},
		{"both", NewSessionState().Select("a").WithPendingNew("p"), false},
	}
	for _, tc := range cases {
		if got := tc.state.HasActiveConversation(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

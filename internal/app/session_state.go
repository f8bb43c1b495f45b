package app

// NewSessionID is the sentinel selection meaning "no concrete session
// yet"; the first message of a turn under it creates a real session.
const NewSessionID = "new"

// SessionState is the serializable UI session selection. Clients send
// it with every request and receive the transitioned state back; all
// transitions are pure functions so no server-side UI state exists.
type SessionState struct {
	Selected   string `json:"selected" form:"selected"`
	PendingNew string `json:"pending_new" form:"pending_new"`
}

func NewSessionState() SessionState {
	return SessionState{Selected: NewSessionID}
}

// Normalize maps a zero-valued state onto the default selection.
func (s SessionState) Normalize() SessionState {
	if s.Selected == "" {
		s.Selected = NewSessionID
	}
	return s
}

// Select picks an existing session from the session list.
func (s SessionState) Select(id string) SessionState {
	s.Selected = id
	return s
}

// WithPendingNew records the generated id the first message of a fresh
// session was saved under.
func (s SessionState) WithPendingNew(id string) SessionState {
	s.PendingNew = id
	return s
}

// AfterTurn consumes a pending new-session id: once the turn that
// created the session completes, the view moves onto it.
func (s SessionState) AfterTurn() SessionState {
	if s.Selected == NewSessionID && s.PendingNew != "" {
		s.Selected = s.PendingNew
		s.PendingNew = ""
	}
	return s
}

// AfterDelete resets the selection when the active session was deleted.
func (s SessionState) AfterDelete(deletedID string) SessionState {
	if s.Selected == deletedID {
		s.Selected = NewSessionID
	}
	return s
}

// Reconcile self-heals a selection that no longer exists in the session
// list, e.g. after a delete from another view.
func (s SessionState) Reconcile(knownIDs []string) SessionState {
	if s.Selected == NewSessionID {
		return s
	}
	for _, id := range knownIDs {
		if id == s.Selected {
			return s
		}
	}
	s.Selected = NewSessionID
	return s
}

// ActiveSession returns the session id messages should be read from:
// the concrete selection, or the pending new id while the view still
// shows "new".
func (s SessionState) ActiveSession() string {
	if s.Selected != NewSessionID {
		return s.Selected
	}
	return s.PendingNew
}

// HasActiveConversation reports whether a transcript should be shown:
// exactly one of {concrete selection, pending new id} holds. The XOR is
// deliberate and mirrors long-standing UI behavior; with both set the
// view waits for AfterTurn to collapse the state.
func (s SessionState) HasActiveConversation() bool {
	return (s.Selected != NewSessionID) != (s.PendingNew != "")
}

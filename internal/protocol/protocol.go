package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harshraj32/test-app-wispr-flow/internal/sequencer"
)

// Message types pushed to the page
const (
	TypeSnapshot = "snapshot"
	TypeDeck     = "deck"
)

// Deck actions
const (
	ActionPlay   = "play"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// Routed player statuses
const (
	StatusPlaying          = "playing"
	StatusStopped          = "stopped"
	StatusNoActivePlayback = "no active playback"
)

// FilesResponse is the body of GET /api/audio-files
type FilesResponse struct {
	Files   []string `json:"files"`
	Message string   `json:"message,omitempty"`
}

// PlayResponse is the body of an accepted GET /play-to-mic/{filename}
type PlayResponse struct {
	Status     string `json:"status"`
	File       string `json:"file"`
	KeyToggled bool   `json:"keyToggled"`
}

// StopResponse is the body of GET /stop-audio
type StopResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every JSON error
type ErrorResponse struct {
	Error string `json:"error"`
}

// ItemView is one item as rendered by the page
type ItemView struct {
	FileName        string  `json:"fileName"`
	Index           int     `json:"index"`
	DurationSeconds float64 `json:"durationSeconds"`
	IsCurrent       bool    `json:"isCurrent"`
}

// SnapshotView is a sequencer snapshot as rendered by the page
type SnapshotView struct {
	State   string     `json:"state"`
	Index   int        `json:"index"`
	Routed  bool       `json:"routed"`
	Items   []ItemView `json:"items"`
	Focus   int        `json:"focus"`
	Message string     `json:"message,omitempty"`
}

// NewSnapshotView converts a sequencer snapshot for the wire
func NewSnapshotView(s sequencer.Snapshot) SnapshotView {
	items := make([]ItemView, len(s.Items))
	for i, item := range s.Items {
		items[i] = ItemView{
			FileName:        item.FileName,
			Index:           item.Index,
			DurationSeconds: item.Duration.Seconds(),
			IsCurrent:       item.IsCurrent,
		}
	}

	return SnapshotView{
		State:   string(s.State),
		Index:   s.Index,
		Routed:  s.Routed,
		Items:   items,
		Focus:   s.Focus,
		Message: s.Message,
	}
}

// Envelope is a websocket message. Snapshot is set for snapshot messages;
// Action, Index and File for deck messages.
type Envelope struct {
	Type     string        `json:"type"`
	Snapshot *SnapshotView `json:"snapshot,omitempty"`
	Action   string        `json:"action,omitempty"`
	Index    *int          `json:"index,omitempty"`
	File     string        `json:"file,omitempty"`
}

// SnapshotEnvelope wraps a snapshot
func SnapshotEnvelope(s sequencer.Snapshot) Envelope {
	view := NewSnapshotView(s)
	return Envelope{Type: TypeSnapshot, Snapshot: &view}
}

// DeckEnvelope builds a deck command. Index and file are only sent with play.
func DeckEnvelope(action string, index int, file string) Envelope {
	env := Envelope{Type: TypeDeck, Action: action}
	if action == ActionPlay {
		env.Index = &index
		env.File = file
	}
	return env
}

// Validate checks that the envelope is well formed
func (e *Envelope) Validate() error {
	switch e.Type {
	case TypeSnapshot:
		if e.Snapshot == nil {
			return fmt.Errorf("snapshot message without snapshot")
		}
	case TypeDeck:
		if !IsValidAction(e.Action) {
			return fmt.Errorf("invalid deck action: %q", e.Action)
		}
		if e.Action == ActionPlay && (e.Index == nil || e.File == "") {
			return fmt.Errorf("deck play requires index and file")
		}
	default:
		return fmt.Errorf("invalid message type: %q", e.Type)
	}
	return nil
}

// Encode validates and marshals an envelope
func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses and validates an envelope
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// IsValidAction reports whether action is a known deck action
func IsValidAction(action string) bool {
	switch action {
	case ActionPlay, ActionPause, ActionResume, ActionStop:
		return true
	}
	return false
}

// ModeRequest is the body of POST /api/sequencer/mode
type ModeRequest struct {
	Routed *bool `json:"routed"`
}

// ParseModeRequest reads a mode request, which must name the mode
func ParseModeRequest(r io.Reader) (bool, error) {
	var req ModeRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return false, fmt.Errorf("invalid mode request: %w", err)
	}

	if req.Routed == nil {
		return false, fmt.Errorf("invalid mode request: missing routed")
	}
	return *req.Routed, nil
}

package recording

import (
	"errors"
	"sync"
	"time"
)

// RoleHost is the only initiator role allowed to mutate recording state.
const RoleHost = "host"

// State is the lifecycle phase of a recording session. NONE and STOPPED
// have no index entry; only the three states below are ever stored.
type State string

const (
	StateAcquiring State = "acquiring"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// ErrChannelBusy means an active session already exists for the channel.
var ErrChannelBusy = errors.New("recording: already in progress for this channel")

// Session is one active recording run on a channel.
type Session struct {
	ChannelName   string    `json:"channelName"`
	ResourceID    string    `json:"resourceId"`
	SessionID     string    `json:"sid"`
	UID           string    `json:"uid"` // recorder bot identity
	Mode          string    `json:"recordingMode"`
	InitiatorRole string    `json:"initiatorRole"`
	State         State     `json:"state"`
	StartedAt     time.Time `json:"startedAt"`
}

// SessionIndex is the mutex-guarded active-session index: at most one
// non-terminal session per channel. Locks are held only for map mutation,
// never across provider calls.
type SessionIndex struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewSessionIndex creates an empty index.
func NewSessionIndex() *SessionIndex {
	return &SessionIndex{sessions: make(map[string]Session)}
}

// Reserve atomically checks for an existing session and inserts s if the
// channel is free. Returns ErrChannelBusy otherwise. This single
// check-and-insert is what keeps two concurrent starts from both winning.
func (i *SessionIndex) Reserve(channelName string, s Session) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.sessions[channelName]; ok {
		return ErrChannelBusy
	}
	i.sessions[channelName] = s
	return nil
}

// Set overwrites the session stored for the channel.
func (i *SessionIndex) Set(channelName string, s Session) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sessions[channelName] = s
}

// SetState updates only the state of an existing entry, if present.
func (i *SessionIndex) SetState(channelName string, state State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if s, ok := i.sessions[channelName]; ok {
		s.State = state
		i.sessions[channelName] = s
	}
}

// Get returns the session for the channel, if any.
func (i *SessionIndex) Get(channelName string) (Session, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	s, ok := i.sessions[channelName]
	return s, ok
}

// Remove frees the channel for a new recording.
func (i *SessionIndex) Remove(channelName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.sessions, channelName)
}

// List returns a snapshot of all active sessions.
func (i *SessionIndex) List() []Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Session, 0, len(i.sessions))
	for _, s := range i.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of active sessions.
func (i *SessionIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sessions)
}

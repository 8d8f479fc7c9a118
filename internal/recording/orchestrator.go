package recording

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/internal/agora"
	"github.com/clearcast/recording-backend/internal/rtctoken"
	"github.com/clearcast/recording-backend/internal/uploads"
)

// DefaultMode is the composite recording mode.
const DefaultMode = "mix"

// recorderTokenTTL bounds the recorder bot credential.
const recorderTokenTTL = time.Hour

// ErrForbidden means the initiator is not the HOST. It is checked before
// any provider call, so an unauthorized request has no side effects.
var ErrForbidden = errors.New("recording: only HOST may perform this operation")

// Provider is the remote recording control plane the orchestrator drives.
type Provider interface {
	Acquire(ctx context.Context, channelName, uid string) (string, error)
	Start(ctx context.Context, resourceID, mode string, req agora.StartRequest) (string, error)
	Stop(ctx context.Context, resourceID, sid, mode, channelName, uid string, asyncStop bool) (*agora.ServerResponse, error)
	Query(ctx context.Context, resourceID, sid, mode string) (*agora.ServerResponse, error)
	UpdateLayout(ctx context.Context, resourceID, sid, mode, channelName, uid string, layout int, backgroundColor string) error
}

// TokenProvider mints the short-lived credential the recorder bot joins with.
type TokenProvider interface {
	RTCToken(channelName, uid string, role rtctoken.Role, ttl time.Duration) (string, error)
}

// Orchestrator owns the acquire → start → stop → query state machine and
// the active-session index. Stop responses consult the upload store so the
// slow provider-side upload never blocks the stop path.
type Orchestrator struct {
	index       *SessionIndex
	provider    Provider
	tokens      TokenProvider
	store       uploads.Store
	callbackURL string // handed to the provider at start time
	logger      *zap.Logger
}

// NewOrchestrator wires the orchestrator. callbackURL is the externally
// reachable address of the upload webhook.
func NewOrchestrator(index *SessionIndex, provider Provider, tokens TokenProvider, store uploads.Store, callbackURL string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		index:       index,
		provider:    provider,
		tokens:      tokens,
		store:       store,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// StartParams are the inputs to Start.
type StartParams struct {
	ChannelName   string
	UID           string
	Mode          string
	InitiatorRole string
}

// Start acquires a provider resource, mints the recorder credential and
// starts recording. The channel is reserved before the provider is called
// so concurrent starts for the same channel yield exactly one success; the
// reservation is released on every failure path, never left behind.
func (o *Orchestrator) Start(ctx context.Context, p StartParams) (*Session, error) {
	if p.InitiatorRole != RoleHost {
		return nil, ErrForbidden
	}
	mode := p.Mode
	if mode == "" {
		mode = DefaultMode
	}

	placeholder := Session{
		ChannelName:   p.ChannelName,
		UID:           p.UID,
		Mode:          mode,
		InitiatorRole: p.InitiatorRole,
		State:         StateAcquiring,
		StartedAt:     time.Now().UTC(),
	}
	if err := o.index.Reserve(p.ChannelName, placeholder); err != nil {
		return nil, err
	}

	resourceID, err := o.provider.Acquire(ctx, p.ChannelName, p.UID)
	if err != nil {
		o.index.Remove(p.ChannelName)
		return nil, err
	}

	token, err := o.tokens.RTCToken(p.ChannelName, p.UID, rtctoken.RolePublisher, recorderTokenTTL)
	if err != nil {
		o.index.Remove(p.ChannelName)
		return nil, err
	}

	sid, err := o.provider.Start(ctx, resourceID, mode, agora.StartRequest{
		Cname: p.ChannelName,
		UID:   p.UID,
		ClientRequest: agora.StartClientRequest{
			Token:           token,
			RecordingConfig: defaultRecordingConfig(),
			ExtensionServiceConfig: &agora.ExtensionServiceConfig{
				ExtensionServices: []agora.ExtensionService{{
					ServiceName:  "upload_service",
					CallbackAddr: o.callbackURL,
				}},
			},
		},
	})
	if err != nil {
		o.index.Remove(p.ChannelName)
		return nil, err
	}

	session := placeholder
	session.ResourceID = resourceID
	session.SessionID = sid
	session.State = StateRecording
	o.index.Set(p.ChannelName, session)

	o.logger.Info("recording started",
		zap.String("channel", p.ChannelName),
		zap.String("resource_id", resourceID),
		zap.String("sid", sid),
		zap.String("mode", mode))
	return &session, nil
}

// StopParams are the inputs to Stop.
type StopParams struct {
	ResourceID    string
	SessionID     string
	ChannelName   string
	UID           string
	Mode          string
	AsyncStop     bool
	InitiatorRole string
}

// StopResult is the two-path outcome of a stop: files if the delivery
// already arrived, otherwise a poll endpoint the client retries.
type StopResult struct {
	StoppedAt       time.Time
	Files           []uploads.FileRecord
	UploadingStatus string
	PollEndpoint    string
}

// Stop issues the provider stop and frees the channel for a new recording
// before returning, whether or not files have arrived yet. The channel is
// removed even when the provider rejects the stop: the session is over
// from this system's point of view either way.
func (o *Orchestrator) Stop(ctx context.Context, p StopParams) (*StopResult, error) {
	if p.InitiatorRole != RoleHost {
		return nil, ErrForbidden
	}
	mode := p.Mode
	if mode == "" {
		mode = DefaultMode
	}

	if p.ChannelName != "" {
		o.index.SetState(p.ChannelName, StateStopping)
	}

	_, stopErr := o.provider.Stop(ctx, p.ResourceID, p.SessionID, mode, p.ChannelName, p.UID, p.AsyncStop)

	if p.ChannelName != "" {
		o.index.Remove(p.ChannelName)
	}
	if stopErr != nil {
		return nil, stopErr
	}

	result := &StopResult{StoppedAt: time.Now().UTC()}
	batch, err := o.store.GetBySessionID(ctx, p.SessionID)
	switch {
	case err == nil:
		result.Files = batch.Files
		result.UploadingStatus = "done"
	case errors.Is(err, uploads.ErrNotFound):
		result.UploadingStatus = "pending"
		result.PollEndpoint = "/recording/" + p.SessionID
	default:
		// Store failure degrades to the poll contract rather than failing the stop.
		o.logger.Error("upload store lookup failed", zap.Error(err), zap.String("sid", p.SessionID))
		result.UploadingStatus = "pending"
		result.PollEndpoint = "/recording/" + p.SessionID
	}

	o.logger.Info("recording stopped",
		zap.String("channel", p.ChannelName),
		zap.String("sid", p.SessionID),
		zap.String("uploading_status", result.UploadingStatus))
	return result, nil
}

// QueryParams are the inputs to Query.
type QueryParams struct {
	ResourceID string
	SessionID  string
	Mode       string
}

// QueryResult combines the provider's view with any locally known batch.
type QueryResult struct {
	Provider *agora.ServerResponse
	Files    []uploads.FileRecord
}

// Query reads through to the provider's status endpoint. Side-effect free.
func (o *Orchestrator) Query(ctx context.Context, p QueryParams) (*QueryResult, error) {
	mode := p.Mode
	if mode == "" {
		mode = DefaultMode
	}
	srv, err := o.provider.Query(ctx, p.ResourceID, p.SessionID, mode)
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Provider: srv}
	if batch, err := o.store.GetBySessionID(ctx, p.SessionID); err == nil {
		result.Files = batch.Files
	}
	return result, nil
}

// LayoutParams are the inputs to UpdateLayout.
type LayoutParams struct {
	ResourceID      string
	SessionID       string
	ChannelName     string
	UID             string
	Mode            string
	Layout          int
	BackgroundColor string
	InitiatorRole   string
}

// UpdateLayout forwards a composite layout change to the provider.
// No local state changes.
func (o *Orchestrator) UpdateLayout(ctx context.Context, p LayoutParams) error {
	if p.InitiatorRole != RoleHost {
		return ErrForbidden
	}
	mode := p.Mode
	if mode == "" {
		mode = DefaultMode
	}
	layout := p.Layout
	if layout == 0 {
		layout = 1
	}
	bg := p.BackgroundColor
	if bg == "" {
		bg = "#000000"
	}
	return o.provider.UpdateLayout(ctx, p.ResourceID, p.SessionID, mode, p.ChannelName, p.UID, layout, bg)
}

// ActiveSessions returns a snapshot of the active-session index.
func (o *Orchestrator) ActiveSessions() []Session {
	return o.index.List()
}

// defaultRecordingConfig mirrors the provider defaults for composite
// recordings: both streams, 30s idle timeout, 360p mixed layout.
func defaultRecordingConfig() agora.RecordingConfig {
	return agora.RecordingConfig{
		ChannelType: 0,
		StreamTypes: 2,
		MaxIdleTime: 30,
		TranscodingConfig: agora.TranscodingConfig{
			Height:           640,
			Width:            360,
			Bitrate:          500,
			FPS:              15,
			MixedVideoLayout: 1,
			BackgroundColor:  "#000000",
		},
	}
}

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"

	"github.com/citycast/server/internal/history"
	"github.com/citycast/server/internal/repository/catalog"
	"github.com/citycast/server/internal/sequencer"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownSlot     = errors.New("unknown slot")
)

const (
	transitionsStream = "transitions"
	nowPlayingStream  = "now-playing"
)

type iCatalogRepo interface {
	GetItem(ctx context.Context, itemId string) (catalog.Item, error)
	RandomCandidate(ctx context.Context, params *catalog.RandomCandidateParams) (*catalog.Item, error)
	GetBumpers(ctx context.Context, flavor string) ([]catalog.Bumper, error)
	GetShowSteps(ctx context.Context, showId string) ([]catalog.ShowStep, error)
}

type iHistoryStore interface {
	Record(ctx context.Context, params *history.RecordParams) error
	GetRecent(ctx context.Context, limit int) ([]history.Entry, error)
}

type iPublisher interface {
	Publish(id string, event *sse.Event)
}

type service struct {
	catalogRepo iCatalogRepo
	history     iHistoryStore
	events      iPublisher
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(catalogRepo iCatalogRepo, historyStore iHistoryStore, events iPublisher, logger *slog.Logger) *service {
	return &service{
		catalogRepo: catalogRepo,
		history:     historyStore,
		events:      events,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

type CreateSessionParams struct {
	Sender        Sender
	Platform      string
	InitialItemId string
	ShowId        string
}

type CreateSessionResponse struct {
	SessionId string
	Snapshot  sequencer.Snapshot
}

// CreateSession builds a channel session for one connected surface and
// starts its rotation. The session lives until the connection drops.
func (s *service) CreateSession(ctx context.Context, params *CreateSessionParams) (CreateSessionResponse, error) {
	sessionId := uuid.NewString()

	playerA := newWSPlayer(sequencer.SlotA, params.Sender)
	playerB := newWSPlayer(sequencer.SlotB, params.Sender)

	engine := sequencer.New(&sequencer.Params{
		Config:       sequencer.ConfigForPlatform(params.Platform),
		Source:       catalogSource{repo: s.catalogRepo},
		SlotA:        playerA,
		SlotB:        playerB,
		BumperScreen: &wsBumperScreen{sender: params.Sender},
		Overlay:      &wsOverlay{sender: params.Sender},
		Logger:       s.logger.With("session_id", sessionId),
	})

	session := &Session{
		Id:        sessionId,
		Platform:  params.Platform,
		CreatedAt: time.Now(),
		engine:    engine,
		sender:    params.Sender,
		players: map[sequencer.SlotId]*wsPlayer{
			sequencer.SlotA: playerA,
			sequencer.SlotB: playerB,
		},
	}

	engine.OnTransition(func(t sequencer.Transition) {
		s.recordTransition(sessionId, t)
	})
	engine.OnSnapshot(func(snap sequencer.Snapshot) {
		s.publishSnapshot(sessionId, params.Sender, snap)
	})

	s.mu.Lock()
	s.sessions[sessionId] = session
	s.mu.Unlock()

	if err := engine.Start(ctx, &sequencer.StartParams{
		InitialItemId: params.InitialItemId,
		ShowId:        params.ShowId,
	}); err != nil {
		s.mu.Lock()
		delete(s.sessions, sessionId)
		s.mu.Unlock()
		engine.Close()
		return CreateSessionResponse{}, fmt.Errorf("failed to start session: %w", err)
	}

	return CreateSessionResponse{
		SessionId: sessionId,
		Snapshot:  engine.Snapshot(),
	}, nil
}

func (s *service) RemoveSession(ctx context.Context, sessionId string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionId]
	delete(s.sessions, sessionId)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	session.engine.Close()
	s.logger.InfoContext(ctx, "session removed", "session_id", sessionId)
	return nil
}

func (s *service) getSession(sessionId string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionId]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

type SessionInfo struct {
	SessionId string             `json:"session_id"`
	Platform  string             `json:"platform"`
	CreatedAt time.Time          `json:"created_at"`
	Snapshot  sequencer.Snapshot `json:"snapshot"`
}

func (s *service) NowPlaying(ctx context.Context) []SessionInfo {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, SessionInfo{
			SessionId: session.Id,
			Platform:  session.Platform,
			CreatedAt: session.CreatedAt,
			Snapshot:  session.engine.Snapshot(),
		})
	}
	return infos
}

func (s *service) GetHistory(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.history.GetRecent(ctx, limit)
}

// recordTransition appends a finished item to the as-played log and
// pushes it to event subscribers. Logging failures never block the
// rotation.
func (s *service) recordTransition(sessionId string, t sequencer.Transition) {
	ctx := context.Background()
	if err := s.history.Record(ctx, &history.RecordParams{
		ItemId:     t.Item.Id,
		Kind:       string(t.Item.Kind),
		Title:      t.Item.Title,
		Category:   t.Item.Category,
		EndReason:  string(t.Reason),
		PlayedSecs: t.ProgressSeconds,
	}); err != nil {
		s.logger.Warn("failed to record transition", "session_id", sessionId, "error", err)
	}

	if s.events != nil {
		data, err := json.Marshal(struct {
			SessionId       string                `json:"session_id"`
			Item            sequencer.ContentItem `json:"item"`
			Reason          string                `json:"reason"`
			ProgressSeconds float64               `json:"progress_seconds"`
		}{sessionId, t.Item, string(t.Reason), t.ProgressSeconds})
		if err != nil {
			s.logger.Warn("failed to marshal transition event", "error", err)
			return
		}
		s.events.Publish(transitionsStream, &sse.Event{Data: data})
	}
}

// publishSnapshot mirrors every observable-state change to the owning
// surface and to event subscribers.
func (s *service) publishSnapshot(sessionId string, sender Sender, snap sequencer.Snapshot) {
	if err := sender.Send(&Output{Type: msgSnapshot, Payload: snap}); err != nil {
		s.logger.Debug("failed to send snapshot", "session_id", sessionId, "error", err)
	}

	if s.events != nil {
		data, err := json.Marshal(struct {
			SessionId string             `json:"session_id"`
			Snapshot  sequencer.Snapshot `json:"snapshot"`
		}{sessionId, snap})
		if err != nil {
			s.logger.Warn("failed to marshal snapshot event", "error", err)
			return
		}
		s.events.Publish(nowPlayingStream, &sse.Event{Data: data})
	}
}

// Package service exposes the draft apps over Connect.
package service

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
	"github.com/mcdev12/countrydraft/go/internal/draft/initializer"
	"github.com/mcdev12/countrydraft/go/internal/draft/override"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// SessionApp defines what the service layer needs from the session application
type SessionApp interface {
	GetState(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	ApplyPick(ctx context.Context, req session.ApplyPickRequest) (*models.DraftSession, error)
	Start(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	UpdateSettings(ctx context.Context, req session.UpdateSettingsRequest) (*models.DraftSession, error)
	ListLive(ctx context.Context) ([]*models.DraftSession, error)
}

// OverrideApp defines what the service layer needs for commissioner actions
type OverrideApp interface {
	Override(ctx context.Context, req override.OverrideRequest) (*models.DraftSession, error)
}

// InitializerApp defines what the service layer needs to (re)build sessions
type InitializerApp interface {
	InitializeFromRoster(ctx context.Context, sessionID uuid.UUID, opts initializer.Options) (*models.DraftSession, error)
}

// Service implements the DraftService Connect interface
type Service struct {
	sessions  SessionApp
	overrides OverrideApp
	init      InitializerApp
}

// NewService creates a new draft Connect service
func NewService(sessions SessionApp, overrides OverrideApp, init InitializerApp) *Service {
	return &Service{
		sessions:  sessions,
		overrides: overrides,
		init:      init,
	}
}

// Verify that Service implements the Handler interface
var _ draftrpc.Handler = (*Service)(nil)

// GetState returns a session and its turn state
func (s *Service) GetState(ctx context.Context, req *connect.Request[draftrpc.GetStateRequest]) (*connect.Response[draftrpc.DraftState], error) {
	if err := requireID(req.Msg.DraftID); err != nil {
		return nil, draftrpc.ToConnectError(err)
	}
	return respond(s.sessions.GetState(ctx, req.Msg.DraftID))
}

// ApplyPick submits a participant's pick
func (s *Service) ApplyPick(ctx context.Context, req *connect.Request[draftrpc.ApplyPickRequest]) (*connect.Response[draftrpc.DraftState], error) {
	return respond(s.sessions.ApplyPick(ctx, session.ApplyPickRequest{
		SessionID:         req.Msg.DraftID,
		ParticipantID:     req.Msg.ParticipantID,
		ItemCode:          req.Msg.ItemCode,
		ExpectedPickIndex: req.Msg.ExpectedPickIndex,
		Source:            models.PickSource(req.Msg.Source),
	}))
}

// Override runs a commissioner action
func (s *Service) Override(ctx context.Context, req *connect.Request[draftrpc.OverrideRequest]) (*connect.Response[draftrpc.DraftState], error) {
	if err := requireID(req.Msg.DraftID); err != nil {
		return nil, draftrpc.ToConnectError(err)
	}
	return respond(s.overrides.Override(ctx, override.OverrideRequest{
		SessionID:           req.Msg.DraftID,
		Action:              override.Action(req.Msg.Action),
		TargetParticipantID: req.Msg.TargetParticipantID,
		ItemCode:            req.Msg.ItemCode,
		ResetPicks:          req.Msg.ResetPicks,
		ShuffleOrder:        req.Msg.ShuffleOrder,
	}))
}

// Initialize creates or repairs a session from the division roster
func (s *Service) Initialize(ctx context.Context, req *connect.Request[draftrpc.InitializeRequest]) (*connect.Response[draftrpc.DraftState], error) {
	if err := requireID(req.Msg.DraftID); err != nil {
		return nil, draftrpc.ToConnectError(err)
	}
	return respond(s.init.InitializeFromRoster(ctx, req.Msg.DraftID, initializer.Options{
		ResetPicks:   req.Msg.ResetPicks,
		ShuffleOrder: req.Msg.ShuffleOrder,
	}))
}

// StartDraft moves a scheduled draft to live
func (s *Service) StartDraft(ctx context.Context, req *connect.Request[draftrpc.StartDraftRequest]) (*connect.Response[draftrpc.DraftState], error) {
	if err := requireID(req.Msg.DraftID); err != nil {
		return nil, draftrpc.ToConnectError(err)
	}
	return respond(s.sessions.Start(ctx, req.Msg.DraftID))
}

// UpdateSettings changes the pick timer settings
func (s *Service) UpdateSettings(ctx context.Context, req *connect.Request[draftrpc.UpdateSettingsRequest]) (*connect.Response[draftrpc.DraftState], error) {
	if err := requireID(req.Msg.DraftID); err != nil {
		return nil, draftrpc.ToConnectError(err)
	}
	appReq := session.UpdateSettingsRequest{
		SessionID:      req.Msg.DraftID,
		PerTurnSeconds: req.Msg.PerTurnSeconds,
	}
	if req.Msg.ExpiryPolicy != nil {
		p := models.ExpiryPolicy(*req.Msg.ExpiryPolicy)
		appReq.ExpiryPolicy = &p
	}
	return respond(s.sessions.UpdateSettings(ctx, appReq))
}

// ListLiveDrafts returns every live session
func (s *Service) ListLiveDrafts(ctx context.Context, req *connect.Request[draftrpc.ListLiveDraftsRequest]) (*connect.Response[draftrpc.ListLiveDraftsResponse], error) {
	sessions, err := s.sessions.ListLive(ctx)
	if err != nil {
		return nil, draftrpc.ToConnectError(err)
	}

	resp := &draftrpc.ListLiveDraftsResponse{Drafts: make([]*draftrpc.DraftState, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Drafts = append(resp.Drafts, draftrpc.NewDraftState(sess))
	}
	return connect.NewResponse(resp), nil
}

func respond(s *models.DraftSession, err error) (*connect.Response[draftrpc.DraftState], error) {
	if err != nil {
		return nil, draftrpc.ToConnectError(err)
	}
	return connect.NewResponse(draftrpc.NewDraftState(s)), nil
}

func requireID(id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: draft id is required", draft.ErrInvalidRequest)
	}
	return nil
}

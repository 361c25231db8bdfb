package draftrpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// Client calls a remote draft service. Errors carry the same sentinels the
// service returned.
type Client struct {
	getState       *connect.Client[GetStateRequest, DraftState]
	applyPick      *connect.Client[ApplyPickRequest, DraftState]
	override       *connect.Client[OverrideRequest, DraftState]
	initialize     *connect.Client[InitializeRequest, DraftState]
	startDraft     *connect.Client[StartDraftRequest, DraftState]
	updateSettings *connect.Client[UpdateSettingsRequest, DraftState]
	listLive       *connect.Client[ListLiveDraftsRequest, ListLiveDraftsResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		getState:       connect.NewClient[GetStateRequest, DraftState](httpClient, baseURL+GetStateProcedure, opts...),
		applyPick:      connect.NewClient[ApplyPickRequest, DraftState](httpClient, baseURL+ApplyPickProcedure, opts...),
		override:       connect.NewClient[OverrideRequest, DraftState](httpClient, baseURL+OverrideProcedure, opts...),
		initialize:     connect.NewClient[InitializeRequest, DraftState](httpClient, baseURL+InitializeProcedure, opts...),
		startDraft:     connect.NewClient[StartDraftRequest, DraftState](httpClient, baseURL+StartDraftProcedure, opts...),
		updateSettings: connect.NewClient[UpdateSettingsRequest, DraftState](httpClient, baseURL+UpdateSettingsProcedure, opts...),
		listLive:       connect.NewClient[ListLiveDraftsRequest, ListLiveDraftsResponse](httpClient, baseURL+ListLiveDraftsProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, FromConnectError(err)
	}
	return resp.Msg, nil
}

// State returns the session with its derived turn state.
func (c *Client) State(ctx context.Context, id uuid.UUID) (*DraftState, error) {
	return call(ctx, c.getState, &GetStateRequest{DraftID: id})
}

// GetState returns the stored session.
func (c *Client) GetState(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	st, err := c.State(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.Session, nil
}

// ApplyPick submits a pick.
func (c *Client) ApplyPick(ctx context.Context, req session.ApplyPickRequest) (*models.DraftSession, error) {
	st, err := c.Pick(ctx, &ApplyPickRequest{
		DraftID:           req.SessionID,
		ParticipantID:     req.ParticipantID,
		ItemCode:          req.ItemCode,
		ExpectedPickIndex: req.ExpectedPickIndex,
		Source:            string(req.Source),
	})
	if err != nil {
		return nil, err
	}
	return st.Session, nil
}

// Pick submits a pick and returns the resulting state.
func (c *Client) Pick(ctx context.Context, req *ApplyPickRequest) (*DraftState, error) {
	return call(ctx, c.applyPick, req)
}

// ListLive returns every live session.
func (c *Client) ListLive(ctx context.Context) ([]*models.DraftSession, error) {
	resp, err := call(ctx, c.listLive, &ListLiveDraftsRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]*models.DraftSession, 0, len(resp.Drafts))
	for _, st := range resp.Drafts {
		out = append(out, st.Session)
	}
	return out, nil
}

func (c *Client) Override(ctx context.Context, req *OverrideRequest) (*DraftState, error) {
	return call(ctx, c.override, req)
}

func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*DraftState, error) {
	return call(ctx, c.initialize, req)
}

func (c *Client) StartDraft(ctx context.Context, id uuid.UUID) (*DraftState, error) {
	return call(ctx, c.startDraft, &StartDraftRequest{DraftID: id})
}

func (c *Client) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*DraftState, error) {
	return call(ctx, c.updateSettings, req)
}

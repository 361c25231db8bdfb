package draftrpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// Handler is implemented by the draft service.
type Handler interface {
	GetState(ctx context.Context, req *connect.Request[GetStateRequest]) (*connect.Response[DraftState], error)
	ApplyPick(ctx context.Context, req *connect.Request[ApplyPickRequest]) (*connect.Response[DraftState], error)
	Override(ctx context.Context, req *connect.Request[OverrideRequest]) (*connect.Response[DraftState], error)
	Initialize(ctx context.Context, req *connect.Request[InitializeRequest]) (*connect.Response[DraftState], error)
	StartDraft(ctx context.Context, req *connect.Request[StartDraftRequest]) (*connect.Response[DraftState], error)
	UpdateSettings(ctx context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[DraftState], error)
	ListLiveDrafts(ctx context.Context, req *connect.Request[ListLiveDraftsRequest]) (*connect.Response[ListLiveDraftsResponse], error)
}

// NewHandler builds an HTTP handler for svc and returns the path to mount it on.
func NewHandler(svc Handler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	handlers := map[string]http.Handler{
		GetStateProcedure:       connect.NewUnaryHandler(GetStateProcedure, svc.GetState, opts...),
		ApplyPickProcedure:      connect.NewUnaryHandler(ApplyPickProcedure, svc.ApplyPick, opts...),
		OverrideProcedure:       connect.NewUnaryHandler(OverrideProcedure, svc.Override, opts...),
		InitializeProcedure:     connect.NewUnaryHandler(InitializeProcedure, svc.Initialize, opts...),
		StartDraftProcedure:     connect.NewUnaryHandler(StartDraftProcedure, svc.StartDraft, opts...),
		UpdateSettingsProcedure: connect.NewUnaryHandler(UpdateSettingsProcedure, svc.UpdateSettings, opts...),
		ListLiveDraftsProcedure: connect.NewUnaryHandler(ListLiveDraftsProcedure, svc.ListLiveDrafts, opts...),
	}

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Runner is a background loop the gateway depends on, such as the event
// stream consumer that feeds its snapshot source.
type Runner interface {
	Run(ctx context.Context) error
}

// Service is the draft gateway: it pushes committed draft snapshots to
// websocket clients.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	feed              Runner
}

// NewService creates a new draft gateway service. feed may be nil when the
// snapshot source is in-process.
func NewService(config ConnectionConfig, source SnapshotSource, feed Runner, clock clockwork.Clock) *Service {
	cm := NewConnectionManager(config, source, clock)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		feed:              feed,
	}
}

// Start runs the feed until ctx is cancelled, then closes every connection.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	errCh := make(chan error, 1)
	if s.feed != nil {
		go func() { errCh <- s.feed.Run(ctx) }()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("gateway feed stopped")
		}
	}

	s.connectionManager.CloseAll()
	log.Info().Msg("draft gateway service stopped")
	return err
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("draft gateway routes registered")
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

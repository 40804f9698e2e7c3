package socket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/services"
)

// Server upgrades authenticated HTTP requests to matchmaking websocket
// connections.
type Server struct {
	service  *services.MatchmakingService
	secret   string
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds the websocket endpoint. clientURL restricts the allowed
// origin; an empty value allows any origin (development).
func NewServer(service *services.MatchmakingService, secret, clientURL string, logger zerolog.Logger) *Server {
	return &Server{
		service: service,
		secret:  secret,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if clientURL == "" {
					return true
				}
				return r.Header.Get("Origin") == clientURL
			},
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Authentication failures refuse the connection before any queue or
	// match state is touched.
	user, err := authenticate(r, s.secret)
	if err != nil {
		s.logger.Warn().Err(err).Msg("authentication failed")
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(user, conn, s.service, s.logger)
	s.service.HandleConnect(client)

	go client.writePump()
	client.readPump(r.Context())
}

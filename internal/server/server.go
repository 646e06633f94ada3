package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"bluff-server/internal/bluff"
	"bluff-server/internal/config"
)

const archiveTimeout = 10 * time.Second

type Server struct {
	cfg               config.Config
	logger            *zap.Logger
	connectionManager *ConnectionManager
	gameManager       *GameManager
	sessionManager    *SessionManager
	rateLimiter       *RateLimiter
	archive           Archive
	archiveWG         sync.WaitGroup
}

type Option func(*Server)

// WithDealer fixes how rooms deal, for tests that need known hands.
func WithDealer(d bluff.Dealer) Option {
	return func(s *Server) {
		s.gameManager.policy.Dealer = d
	}
}

// NewServer wires the registry and gateway. A nil archive disables match
// history.
func NewServer(cfg config.Config, logger *zap.Logger, archive Archive, opts ...Option) (*Server, *http.Server) {
	if archive == nil {
		archive = NopArchive{}
	}

	sessionManager := NewSessionManager()
	s := &Server{
		cfg:               cfg,
		logger:            logger,
		connectionManager: NewConnectionManager(),
		sessionManager:    sessionManager,
		gameManager: NewGameManager(RoomPolicy{
			MaxSeats:        cfg.MaxSeats,
			EmptyRoomGrace:  cfg.EmptyRoomGrace,
			IdleRoomTimeout: cfg.IdleRoomTimeout,
		}, sessionManager),
		rateLimiter: NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		archive:     archive,
	}
	for _, opt := range opts {
		opt(s)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, httpServer
}

// RunJanitor destroys expired rooms every JanitorInterval until ctx ends.
func (s *Server) RunJanitor(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Server) sweep(now time.Time) {
	for _, closed := range s.gameManager.Sweep(now) {
		s.roomClosed(closed, "expired")
	}
	s.rateLimiter.Cleanup()
}

// roomClosed detaches any connection still holding one of the room's tokens.
func (s *Server) roomClosed(closed ClosedRoom, reason string) {
	for _, token := range closed.Tokens {
		s.connectionManager.UnmapToken(token)
	}
	s.logger.Info("room destroyed",
		zap.String("room", closed.Code),
		zap.String("reason", reason),
		zap.Int("seats", len(closed.Tokens)),
	)
}

// archiveMatch writes a finished game in the background.
func (s *Server) archiveMatch(match MatchRecord) {
	s.archiveWG.Add(1)
	go func() {
		defer s.archiveWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := s.archive.Record(ctx, match); err != nil {
			s.logger.Warn("failed to archive match", zap.String("room", match.RoomCode), zap.Error(err))
			return
		}
		s.logger.Debug("match archived", zap.String("room", match.RoomCode))
	}()
}

// Shutdown closes every client and waits for pending archive writes.
func (s *Server) Shutdown(ctx context.Context) error {
	clients := s.connectionManager.Clients()
	for _, c := range clients {
		c.Close(websocket.StatusGoingAway, "server shutting down")
	}
	s.logger.Info("closed client connections", zap.Int("count", len(clients)))

	done := make(chan struct{})
	go func() {
		s.archiveWG.Wait()
		close(done)
	}()

	defer s.archive.Close()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

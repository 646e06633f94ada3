package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bluff-server/internal/bluff"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.healthHandler)
	r.Get("/rooms/{code}", s.lobbyHandler)
	r.Get("/matches", s.matchesHandler)
	r.Get("/ws", s.websocketHandler)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowedOrigin matches the Origin host against the configured patterns the
// same way the websocket handshake does.
func (s *Server) allowedOrigin(origin string) string {
	for _, pattern := range s.cfg.AllowedOrigins {
		if pattern == "*" {
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	for _, pattern := range s.cfg.AllowedOrigins {
		if ok, _ := path.Match(pattern, u.Host); ok {
			return origin
		}
	}
	return ""
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Rooms:       s.gameManager.RoomCount(),
		Connections: s.connectionManager.Count(),
		Archive:     "disabled",
	}
	status := http.StatusOK

	if _, disabled := s.archive.(NopArchive); !disabled {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.archive.Ping(ctx); err != nil {
			s.logger.Warn("archive health check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Archive = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Archive = "ok"
		}
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) lobbyHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.gameManager.Lobby(chi.URLParam(r, "code"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrInvalidRoomCode):
			status = http.StatusBadRequest
		case errors.Is(err, ErrRoomNotFound):
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, ErrorMessage{Code: ErrorCode(err), Message: errorMessage(err)})
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) matchesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultMatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, ErrorMessage{Code: "INVALID_PAYLOAD", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxMatchLimit)
	}

	matches, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list matches", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, ErrorMessage{Code: codeInternal, Message: "Internal server error"})
		return
	}

	summaries := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, MatchSummary{
			RoomCode:   m.RoomCode,
			Seats:      m.Seats,
			Winner:     m.Winner,
			WinnerSeat: m.WinnerSeat,
			Actions:    m.Actions,
			CreatedAt:  m.CreatedAt,
			FinishedAt: m.FinishedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient(uuid.NewString(), socket, s.logger)
	s.connectionManager.AddConnection(client)
	s.logger.Info("connection opened", zap.String("conn", client.ID))
	defer s.dropConnection(client)

	go client.Run(ctx)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.logger.Debug("connection closed by peer", zap.String("conn", client.ID))
			default:
				s.logger.Debug("connection read error", zap.String("conn", client.ID), zap.Error(err))
			}
			return
		}

		if msgType != websocket.MessageText {
			s.sendError(client, ErrInvalidPayload)
			continue
		}

		s.handleMessage(client, data)
	}
}

// dropConnection runs when a socket ends. The seat it spoke for, if any, goes
// offline but keeps its place in the rotation.
func (s *Server) dropConnection(client *Client) {
	token := s.connectionManager.RemoveConnection(client.ID)
	s.rateLimiter.RemoveConnection(client.ID)
	client.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("connection closed", zap.String("conn", client.ID))

	if token != "" {
		s.releaseSeat(token)
	}
}

// releaseSeat marks a token's seat disconnected unless some other connection
// holds the token now.
func (s *Server) releaseSeat(token string) {
	session, err := s.sessionManager.GetSession(token)
	if err != nil {
		return // room already gone
	}

	rebound := func(token string) bool {
		return s.connectionManager.GetConnectionByToken(token) != ""
	}
	closed, err := s.gameManager.MarkDisconnected(session.RoomCode, token, rebound, s.broadcastCommit)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrInvalidCredential) {
			s.logger.Warn("failed to mark seat disconnected", zap.String("room", session.RoomCode), zap.Error(err))
		}
		return
	}
	if closed != nil {
		s.roomClosed(*closed, "empty")
	}
}

func (s *Server) handleMessage(client *Client, data []byte) {
	action, cmd, err := ParseCommand(data)

	if !s.rateLimiter.Allow(client.ID) {
		s.reject(client, action, ErrRateLimited)
		return
	}

	if err != nil {
		if action == "" || errors.Is(err, ErrUnknownCommand) {
			s.sendError(client, err)
		} else {
			s.reject(client, action, err)
		}
		return
	}

	switch cmd := cmd.(type) {
	case PingCommand:
		client.Send(ServerMessage{Type: TypePong, Payload: struct{}{}})
	case CreateRoomCommand:
		s.handleCreateRoom(client, cmd)
	case JoinRoomCommand:
		s.handleJoinRoom(client, cmd)
	case ReconnectCommand:
		s.handleReconnect(client, cmd)
	case GetStateCommand:
		s.handleGetState(client, cmd)
	case MoveCommand:
		s.handleMove(client, action, cmd)
	}
}

func (s *Server) handleCreateRoom(client *Client, cmd CreateRoomCommand) {
	var previous string
	ticket, err := s.gameManager.CreateRoom(cmd.Name, cmd.MaxSeats, func(room *Room, seat int) {
		token := room.Players[seat].Token
		previous = s.bindSeat(client, token)
		client.Send(ServerMessage{
			Type:    TypeRoomCreated,
			Payload: TicketResponse{RoomCode: room.Code, Token: token, Seat: seat},
		})
		s.broadcastState(room)
	})
	if err != nil {
		s.reject(client, TypeCreateRoom, err)
		return
	}

	s.logger.Info("room created",
		zap.String("room", ticket.RoomCode),
		zap.String("conn", client.ID),
	)
	s.releaseSeat(previous)
}

func (s *Server) handleJoinRoom(client *Client, cmd JoinRoomCommand) {
	var previous string
	ticket, err := s.gameManager.JoinRoom(cmd.RoomCode, cmd.Name, func(room *Room, seat int) {
		token := room.Players[seat].Token
		previous = s.bindSeat(client, token)
		client.Send(ServerMessage{
			Type:    TypeRoomJoined,
			Payload: TicketResponse{RoomCode: room.Code, Token: token, Seat: seat},
		})
		s.broadcastState(room)
	})
	if err != nil {
		s.reject(client, TypeJoinRoom, err)
		return
	}

	s.logger.Info("seat joined",
		zap.String("room", ticket.RoomCode),
		zap.Int("seat", ticket.Seat),
		zap.String("conn", client.ID),
	)
	s.releaseSeat(previous)
}

func (s *Server) handleReconnect(client *Client, cmd ReconnectCommand) {
	var previous string
	seat, err := s.gameManager.Reconnect(cmd.RoomCode, cmd.Token, func(room *Room, seat int) {
		previous = s.bindSeat(client, cmd.Token)
		client.Send(ServerMessage{
			Type:    TypeReconnected,
			Payload: ReconnectResponse{RoomCode: room.Code, Seat: seat},
		})
		s.broadcastState(room)
	})
	if err != nil {
		s.reject(client, TypeReconnect, err)
		return
	}

	s.logger.Info("seat reconnected",
		zap.String("room", NormalizeRoomCode(cmd.RoomCode)),
		zap.Int("seat", seat),
		zap.String("conn", client.ID),
	)
	s.releaseSeat(previous)
}

func (s *Server) handleGetState(client *Client, cmd GetStateCommand) {
	var previous string
	err := s.gameManager.WithSeat(cmd.RoomCode, cmd.Token, func(room *Room, seat int) {
		previous = s.bindSeat(client, cmd.Token)
		if room.MarkConnected(seat) {
			s.broadcastState(room)
			return
		}
		client.Send(ServerMessage{
			Type:    TypeStateUpdated,
			Payload: room.Game.GetClientState(seat, s.cfg.LogTail),
		})
	})
	if err != nil {
		s.reject(client, TypeGetState, err)
		return
	}
	s.releaseSeat(previous)
}

func (s *Server) handleMove(client *Client, action string, cmd MoveCommand) {
	var finished *MatchRecord
	var check *bluff.CheckResult
	seat, err := s.gameManager.Apply(cmd.RoomCode, cmd.Token, cmd.Move, func(room *Room, seat int) {
		check = room.LastCheck
		s.broadcastState(room)
		client.Send(ServerMessage{Type: TypeAck, Payload: AckResponse{Action: action, Check: check}})
		if room.Game.IsOver() {
			record := newMatchRecord(room)
			finished = &record
		}
	})
	if err != nil {
		s.reject(client, action, err)
		return
	}

	s.logger.Debug("move accepted",
		zap.String("room", NormalizeRoomCode(cmd.RoomCode)),
		zap.Int("seat", seat),
		zap.String("action", action),
	)
	if check != nil {
		s.logger.Debug("check resolved",
			zap.String("room", NormalizeRoomCode(cmd.RoomCode)),
			zap.Int("claimant", check.Claimant),
			zap.Bool("lied", check.Lied),
			zap.Int("taker", check.Taker),
			zap.Int("pileSize", check.PileSize),
		)
	}

	if finished != nil {
		s.logger.Info("game over",
			zap.String("room", finished.RoomCode),
			zap.String("winner", finished.Winner),
			zap.Int("actions", finished.Actions),
		)
		s.archiveMatch(*finished)
	}
}

// bindSeat points token at client, evicting any other connection that held
// it. It returns the token client spoke for before, if different. Called
// under the room lock.
func (s *Server) bindSeat(client *Client, token string) string {
	displaced, previous := s.connectionManager.BindToken(token, client.ID)
	if displaced != nil {
		displaced.SendAndClose(ServerMessage{
			Type:    TypeDisconnectedElsewhere,
			Payload: DisconnectedElsewhere{Message: "You connected on another device"},
		}, "connected elsewhere")
		s.logger.Info("connection displaced", zap.String("conn", displaced.ID), zap.String("by", client.ID))
	}
	return previous
}

func (s *Server) broadcastCommit(room *Room, _ int) {
	s.broadcastState(room)
}

// broadcastState sends every connected seat its own view of the room. Called
// under the room lock.
func (s *Server) broadcastState(room *Room) {
	for seat, slot := range room.Players {
		client := s.connectionManager.GetClientByToken(slot.Token)
		if client == nil {
			continue
		}
		client.Send(ServerMessage{
			Type:    TypeStateUpdated,
			Payload: room.Game.GetClientState(seat, s.cfg.LogTail),
		})
	}
}

// reject answers only the issuing connection.
func (s *Server) reject(client *Client, action string, err error) {
	code := ErrorCode(err)
	if code == codeInternal {
		s.logger.Error("command failed", zap.String("conn", client.ID), zap.String("action", action), zap.Error(err))
	} else {
		s.logger.Debug("command rejected", zap.String("conn", client.ID), zap.String("action", action), zap.String("code", code))
	}

	client.Send(ServerMessage{
		Type:    TypeCommandRejected,
		Payload: CommandRejected{Action: action, Code: code, Message: errorMessage(err)},
	})
}

func (s *Server) sendError(client *Client, err error) {
	client.Send(ServerMessage{
		Type:    TypeError,
		Payload: ErrorMessage{Code: ErrorCode(err), Message: errorMessage(err)},
	})
}

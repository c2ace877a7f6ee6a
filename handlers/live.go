package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/justbri/moviepicker/logger"
	"github.com/justbri/moviepicker/metrics"
	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/services"
	"github.com/justbri/moviepicker/viewmodel"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Message types of the live protocol.
const (
	msgView    = "view"
	msgError   = "error"
	msgResult  = "result"
	msgPong    = "pong"
	msgPing    = "ping"
	msgFilters = "filters"
	msgPage    = "page"
	msgAdd     = "add"
	msgDelete  = "delete"
	msgToggle  = "toggle"
	msgPick    = "pick"
	msgTrailer = "trailer"
	msgDetails = "details"
)

// liveRequest is a client message. ID is echoed on the reply.
type liveRequest struct {
	Type          string             `json:"type"`
	ID            string             `json:"id,omitempty"`
	Filters       *viewmodel.Filters `json:"filters,omitempty"`
	Page          int                `json:"page,omitempty"`
	Title         string             `json:"title,omitempty"`
	Year          string             `json:"year,omitempty"`
	MovieID       string             `json:"movieId,omitempty"`
	CurrentStatus models.Status      `json:"currentStatus,omitempty"`
}

type liveMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin accepts same-host pages and the configured CORS origins. Requests
// without an Origin header are not from a browser and still need a session cookie.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("WebSocket connection rejected from unauthorized origin", "origin", origin)
	return false
}

// Live upgrades to a websocket that streams the caller's view model and accepts commands.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	sub, err := h.store.Subscribe(r.Context(), owner)
	if err != nil {
		writeError(w, r, fmt.Errorf("subscribe: %w: %v", services.ErrStore, err))
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		slog.Warn("WebSocket upgrade failed", "owner_id", owner, "error", err)
		return
	}

	filters, page := parseFilters(r)
	engine := viewmodel.NewEngine(sub,
		viewmodel.WithPageSize(h.cfg.View.PageSize),
		viewmodel.WithFilters(filters),
		viewmodel.WithPage(page),
	)
	s := &liveSession{
		conn:     conn,
		engine:   engine,
		commands: h.commands.WithTargets(engine),
		ownerID:  owner,
		log:      logger.With("owner_id", owner),
		replies:  make(chan liveMessage, 16),
	}
	s.run(r.Context())
}

// liveSession pairs one websocket with one engine. Only writePump writes to conn.
type liveSession struct {
	conn     *websocket.Conn
	engine   *viewmodel.Engine
	commands *services.Commands
	ownerID  string
	log      *slog.Logger
	replies  chan liveMessage
	inflight sync.WaitGroup
}

func (s *liveSession) run(parent context.Context) {
	metrics.LiveSessions.Inc()
	defer metrics.LiveSessions.Dec()
	s.log.Debug("Live session started")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		_ = s.engine.Run(ctx)
	}()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer cancel()
		s.writePump(ctx)
	}()

	s.readPump(ctx)
	cancel()

	s.inflight.Wait()
	<-writeDone
	<-engineDone
	_ = s.conn.Close()
	s.log.Debug("Live session ended")
}

func (s *liveSession) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Error("Failed to set read deadline", "error", err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var req liveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(ctx, errorMessage("", fmt.Errorf("%w: malformed message", services.ErrValidation)))
			continue
		}
		s.handle(ctx, req)
	}
}

func (s *liveSession) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.writeClose()
			return

		case u, ok := <-s.engine.Updates():
			if !ok {
				s.writeClose()
				return
			}
			msg := liveMessage{Type: msgView, Data: u.View}
			if u.Err != nil {
				s.log.Error("Live view update failed", "error", u.Err)
				msg = errorMessage("", fmt.Errorf("%w: %v", services.ErrStore, u.Err))
			}
			if err := s.write(msg); err != nil {
				return
			}

		case msg := <-s.replies:
			if err := s.write(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *liveSession) handle(ctx context.Context, req liveRequest) {
	switch req.Type {
	case msgPing:
		s.reply(ctx, liveMessage{Type: msgPong, ID: req.ID})

	case msgFilters:
		f := viewmodel.DefaultFilters()
		if req.Filters != nil {
			f = *req.Filters
			f.Status = models.ParseStatus(string(f.Status))
			if f.Genre == "" {
				f.Genre = viewmodel.AllGenres
			}
		}
		s.engine.SetFilters(f)

	case msgPage:
		s.engine.SetPage(req.Page)

	case msgAdd:
		s.async(ctx, req, func(ctx context.Context) (any, error) {
			id, err := s.commands.AddMovie(ctx, s.ownerID, req.Title, req.Year)
			return map[string]string{"id": id}, err
		})

	case msgDelete:
		s.async(ctx, req, func(ctx context.Context) (any, error) {
			return nil, s.commands.DeleteMovie(ctx, s.ownerID, req.MovieID)
		})

	case msgToggle:
		status := req.CurrentStatus
		if status == "" {
			vm, _ := s.engine.Current()
			status = vm.Filters.Status
		}
		s.async(ctx, req, func(ctx context.Context) (any, error) {
			return nil, s.commands.ToggleStatus(ctx, s.ownerID, req.MovieID, status)
		})

	case msgPick:
		vm, _ := s.engine.Current()
		m, ok := s.commands.PickRandom(vm.Groups)
		if !ok {
			s.reply(ctx, liveMessage{Type: msgResult, ID: req.ID, Data: map[string]string{"message": services.NoMoviesMessage}})
			return
		}
		s.reply(ctx, liveMessage{Type: msgResult, ID: req.ID, Data: map[string]movieCard{"movie": cardOf(m)}})

	case msgTrailer:
		s.async(ctx, req, func(ctx context.Context) (any, error) {
			embed, err := s.commands.Trailer(ctx, req.Title)
			return map[string]string{"url": embed}, err
		})

	case msgDetails:
		s.async(ctx, req, func(ctx context.Context) (any, error) {
			m, err := s.commands.Details(ctx, s.ownerID, req.MovieID)
			return cardOf(m), err
		})

	default:
		s.reply(ctx, errorMessage(req.ID, fmt.Errorf("%w: unknown message type %q", services.ErrValidation, req.Type)))
	}
}

// async runs a command off the read loop so lookups do not stall filter and page changes.
func (s *liveSession) async(ctx context.Context, req liveRequest, fn func(context.Context) (any, error)) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		data, err := fn(ctx)
		if err != nil {
			s.log.Info("Live command failed", "type", req.Type, "error", err)
			s.reply(ctx, errorMessage(req.ID, err))
			return
		}
		s.reply(ctx, liveMessage{Type: msgResult, ID: req.ID, Data: data})
	}()
}

func (s *liveSession) reply(ctx context.Context, msg liveMessage) {
	select {
	case s.replies <- msg:
	case <-ctx.Done():
	}
}

func (s *liveSession) write(msg liveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *liveSession) writeClose() {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func errorMessage(id string, err error) liveMessage {
	return liveMessage{
		Type:      msgError,
		ID:        id,
		Error:     err.Error(),
		Kind:      errorKind(err),
		Retryable: services.Retryable(err),
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/service"
)

// Websocket timing for the live tally stream.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientFrame = 512
)

// ResultsHandler serves election results, once or as a live stream.
type ResultsHandler struct {
	elections *service.ElectionService
	tally     *service.TallyService
	upgrader  websocket.Upgrader
	// shutdown ends every live stream when the server stops. Hijacked
	// websocket connections are not closed by http.Server.Shutdown.
	shutdown context.Context
	logger   *slog.Logger
}

func NewResultsHandler(
	shutdown context.Context,
	elections *service.ElectionService,
	tally *service.TallyService,
	logger *slog.Logger,
) *ResultsHandler {
	return &ResultsHandler{
		elections: elections,
		tally:     tally,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		shutdown: shutdown,
		logger:   logger,
	}
}

// HandleResults returns the current tally.
//
// HTTP: GET /api/elections/{id}/results
func (h *ResultsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.elections.Get(r.Context(), viewer, id); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.tally.ComputeResults(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// HandleLive streams tallies over a websocket: the current one on connect,
// then a fresh one after every change to the election or its ballots.
//
// HTTP: GET /api/elections/{id}/results/live?access_token=<jwt>
//
// Access is checked and the watch started before the upgrade, so failures
// still get a normal JSON error response. The stream ends with a close
// frame when the election is deleted or the server shuts down.
func (h *ResultsHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.elections.Get(r.Context(), viewer, id); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.shutdown, cancel)
	defer stop()

	tallies, err := h.tally.Watch(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed",
			slog.String("electionID", id),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	logger := h.logger.With(
		slog.String("electionID", id),
		slog.String("userID", viewer.UserID),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Info("live results connected")
	defer logger.Info("live results disconnected")

	go readPump(conn, cancel)
	writePump(ctx, conn, tallies, logger)
}

// readPump discards client frames, keeps the read deadline fresh on every
// pong and cancels the stream once the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump is the connection's only writer.
func writePump(ctx context.Context, conn *websocket.Conn, tallies <-chan *model.Tally, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case t, ok := <-tallies:
			if !ok {
				code, reason := websocket.CloseNormalClosure, "election closed"
				if ctx.Err() != nil {
					code, reason = websocket.CloseGoingAway, "stream ended"
				}
				writeClose(conn, code, reason)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(t); err != nil {
				logger.Debug("live results write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("live results ping failed", slog.String("error", err.Error()))
				return
			}
		case <-ctx.Done():
			writeClose(conn, websocket.CloseGoingAway, "stream ended")
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

package httpserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rzbill/peerchan/internal/notify"
	channelsvc "github.com/rzbill/peerchan/internal/services/channels"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

const (
	wsReadDeadline = 90 * time.Second
	wsPingEvery    = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = int64(4 << 10)
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// wsConn adapts a websocket to notify.Conn with a bounded write time.
type wsConn struct {
	c    *websocket.Conn
	once sync.Once
}

func (w *wsConn) WriteJSON(v any) error {
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (w *wsConn) Close() error {
	var err error
	w.once.Do(func() {
		_ = w.c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = w.c.Close()
	})
	return err
}

// handleNotify upgrades to a websocket that receives one frame per message
// committed to the channel. Browsers may pass the token as ?token= since
// they cannot set headers on the handshake.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channelid"]
	bearer := bearerToken(r)
	if bearer == "" {
		bearer = r.URL.Query().Get("token")
	}
	filterExpr := r.URL.Query().Get("filter")
	if _, err := s.svc.Authorize(r.Context(), channelID, bearer, channelsvc.AccessRead); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := notify.NewFilter(filterExpr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logpkg.Str("channel_id", channelID), logpkg.Err(err))
		return
	}
	conn := &wsConn{c: c}
	subID, err := s.svc.Subscribe(r.Context(), channelID, bearer, conn, filterExpr)
	if err != nil {
		_ = conn.WriteJSON(notify.WebsocketError{Reason: err.Error(), StatusCode: statusFor(err)})
		_ = conn.Close()
		return
	}
	s.logger.Debug("notify subscribed", logpkg.Str("channel_id", channelID), logpkg.Str("subscriber", subID))
	go s.wsReadLoop(conn, subID)
}

// wsReadLoop discards client frames and keeps the connection alive with
// pings. It returns when the peer goes away.
func (s *Server) wsReadLoop(conn *wsConn, subID string) {
	done := make(chan struct{})
	defer func() {
		close(done)
		s.svc.Unsubscribe(subID)
	}()

	go func() {
		t := time.NewTicker(wsPingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	conn.c.SetReadLimit(wsReadLimit)
	_ = conn.c.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.c.SetPongHandler(func(string) error {
		return conn.c.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})
	for {
		if _, _, err := conn.c.ReadMessage(); err != nil {
			return
		}
	}
}

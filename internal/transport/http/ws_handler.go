package http

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	stdhttp "net/http"

	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
)

const wsWriteTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and runs a relay session per socket.
type WSHandler struct {
	deps        relay.SessionDeps
	authTimeout time.Duration
	log         *zerolog.Logger
}

// NewWSHandler builds the relay endpoint handler.
func NewWSHandler(deps relay.SessionDeps, authTimeout time.Duration, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{deps: deps, authTimeout: authTimeout, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	tr := &wsTransport{conn: conn}
	session := relay.NewSession(h.deps, tr, h.log)

	ctx := r.Context()
	session.Open(ctx)

	// Sockets that never authenticate are evicted instead of leaking.
	if h.authTimeout > 0 {
		timer := time.AfterFunc(h.authTimeout, func() {
			if !session.Authenticated() {
				h.log.Info().Str("conn_id", session.ID()).Msg("closing unauthenticated connection")
				_ = tr.Close(relay.CloseAuthTimeout, "authentication timeout")
			}
		})
		defer timer.Stop()
	}

	for {
		_, data, readErr := conn.Read(ctx)
		if readErr != nil {
			break
		}
		session.HandleFrame(ctx, data)
	}

	// Teardown must run even when the request context is already gone.
	session.HandleClose(context.WithoutCancel(ctx))
	_ = conn.Close(websocket.StatusNormalClosure, "closing")
}

// wsTransport adapts a websocket connection to relay.Transport. The mutex
// serializes writers: broadcasts, unicasts, and the session itself all
// write from their own goroutines.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *wsTransport) Send(ctx context.Context, frame proto.Outbound) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, t.conn, frame)
}

func (t *wsTransport) Close(code int, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}

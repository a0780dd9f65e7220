package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/Jobcall26/jobdial-server/internal/auth"
	"github.com/Jobcall26/jobdial-server/internal/config"
	"github.com/Jobcall26/jobdial-server/internal/log"
	"github.com/Jobcall26/jobdial-server/internal/presence"
	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
	"github.com/Jobcall26/jobdial-server/internal/store/sqlite"
	"github.com/Jobcall26/jobdial-server/internal/telephony"
)

const testReadTimeout = 5 * time.Second

// testEnv is a full server over in-memory sqlite, no redis.
type testEnv struct {
	ts       *httptest.Server
	auth     *auth.Service
	registry *relay.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithAuthTimeout(t, 30*time.Second)
}

func newTestEnvWithAuthTimeout(t *testing.T, authTimeout time.Duration) *testEnv {
	t.Helper()

	logger := log.Nop()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.AuthTimeout = authTimeout

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := relay.NewRegistry()
	dispatcher := relay.NewDispatcher(registry, logger)
	presenceSvc := presence.New(st, nil, logger)
	telephonySvc := telephony.NewService(telephony.NewMock(), st, dispatcher, logger)

	srv := NewServer(cfg, Deps{
		Auth:      authService,
		Store:     st,
		Presence:  presenceSvc,
		Registry:  registry,
		Dispatch:  dispatcher,
		Telephony: telephonySvc,
	}, logger)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, auth: authService, registry: registry}
}

// register creates an account through the REST API and returns its token
// and user id.
func (e *testEnv) register(t *testing.T, username string, role store.Role) (string, int64) {
	t.Helper()

	status, body := e.doJSON(t, http.MethodPost, "/api/register", "", map[string]any{
		"username": username,
		"password": "password123",
		"role":     string(role),
	})
	require.Equal(t, http.StatusCreated, status, "register %s: %v", username, body)

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := e.auth.ValidateToken(token)
	require.NoError(t, err)
	return token, claims.UserID
}

// doJSON performs one request and decodes the JSON response body.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var reqBody *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

// dial opens a raw relay socket. The caller drives the handshake.
func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

// readFrame reads one frame with a bounded wait.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Frame {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, testReadTimeout)
	defer cancel()

	var frame proto.Frame
	require.NoError(t, wsjson.Read(readCtx, conn, &frame))
	return frame
}

// authenticate performs the token handshake and consumes the welcome and
// auth_success frames.
func (e *testEnv) authenticate(t *testing.T, ctx context.Context, conn *websocket.Conn, token string) {
	t.Helper()

	welcome := readFrame(t, ctx, conn)
	require.Equal(t, proto.TypeConnectionEstablished, welcome.Type)

	require.NoError(t, wsjson.Write(ctx, conn, proto.Outbound{
		Type: proto.TypeAuthenticate,
		Data: proto.AuthenticateData{Token: token},
	}))

	ack := readFrame(t, ctx, conn)
	require.Equal(t, proto.TypeAuthSuccess, ack.Type)
}

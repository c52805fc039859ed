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
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

type testEnv struct {
	ts   *httptest.Server
	auth *auth.Service
	hub  *core.Hub
}

// newTestEnv starts the full HTTP surface over an in-memory store.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.FrontendURL = ""
	cfg.JWT.Secret = "test-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	hub := core.NewHub(&logger)
	go hub.Run(ctx)

	delivery := core.NewDelivery(st, hub, nil, &logger)
	server := NewServer(hub, delivery, authService, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-hub.Done()
	})

	return &testEnv{ts: ts, auth: authService, hub: hub}
}

func (e *testEnv) signup(t *testing.T, username string) (token, userID string) {
	t.Helper()

	token, user, err := e.auth.Signup(context.Background(), auth.SignupInput{Username: username, Password: "password123"})
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	return token, user.ID
}

// doJSON performs a request against the test server and decodes the body into out.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) wsURL(userID, token string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?userId=" + userID
	if token != "" {
		u += "&token=" + token
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, userID, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(userID, token), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readEvent reads envelopes until one carries the named event.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) proto.Envelope {
	t.Helper()

	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			t.Fatalf("read %s: %v", event, err)
		}
		if env.Type == proto.OutboundTypeEvent && env.Event == event {
			return env
		}
	}
}

// readPresence reads presence events until one lists exactly want (sorted).
func readPresence(t *testing.T, ctx context.Context, conn *websocket.Conn, want []string) {
	t.Helper()

	var last []string
	for {
		env := readEvent(t, ctx, conn, proto.EventOnlineUsers)
		last = nil
		if err := json.Unmarshal(env.Data, &last); err != nil {
			t.Fatalf("decode presence: %v", err)
		}
		if len(last) == len(want) {
			match := true
			for i := range want {
				if last[i] != want[i] {
					match = false
					break
				}
			}
			if match {
				return
			}
		}
		if ctx.Err() != nil {
			t.Fatalf("presence %v not received, last %v", want, last)
		}
	}
}

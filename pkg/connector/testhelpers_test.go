// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aiku/fbdc/pkg/model"
)

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
}

// fakeDiscord is a test helper that wraps an httptest.Server simulating the
// REST API. It records calls and provides canned responses.
type fakeDiscord struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Tokens maps accepted Authorization header values to users.
	Tokens map[string]*model.User
	// History maps channel ID to messages, newest first like the real API.
	History map[string][]*model.Message
	// FailStatus makes paths containing the key answer with the status.
	FailStatus map[string]int
}

func newFakeDiscord(t *testing.T) *fakeDiscord {
	t.Helper()
	f := &fakeDiscord{
		Tokens:     make(map[string]*model.User),
		History:    make(map[string][]*model.Message),
		FailStatus: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeDiscord) record(r *http.Request, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
		Auth:   r.Header.Get("Authorization"),
	})
}

func (f *fakeDiscord) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeDiscord) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.record(r, string(body))

	path := r.URL.Path
	f.mu.Lock()
	var failStatus int
	for key, status := range f.FailStatus {
		if strings.Contains(path, key) {
			failStatus = status
		}
	}
	f.mu.Unlock()
	if failStatus != 0 {
		w.WriteHeader(failStatus)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "fake error", "code": 0})
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	// GET /users/@me
	case r.Method == http.MethodGet && path == "/users/@me":
		u, ok := f.Tokens[r.Header.Get("Authorization")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "401: Unauthorized", "code": 0})
			return
		}
		_ = json.NewEncoder(w).Encode(u)

	// POST /channels/{id}/messages
	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "channels" && parts[2] == "messages":
		var in messageCreate
		_ = json.Unmarshal(body, &in)
		_ = json.NewEncoder(w).Encode(&model.Message{ID: "900", ChannelID: parts[1], Content: in.Content})

	// POST /channels/{id}/typing
	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "channels" && parts[2] == "typing":
		w.WriteHeader(http.StatusNoContent)

	// GET /channels/{id}/messages
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "channels" && parts[2] == "messages":
		msgs := f.History[parts[1]]
		if msgs == nil {
			msgs = []*model.Message{}
		}
		_ = json.NewEncoder(w).Encode(msgs)

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "404: Not Found", "code": 0})
	}
}

// newTestConfig returns the default config pointed at apiURL.
func newTestConfig(t *testing.T, apiURL string) *Config {
	t.Helper()
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	return cfg
}

func newTestAPIClient(t *testing.T, f *fakeDiscord, cfg *Config) *APIClient {
	t.Helper()
	if cfg == nil {
		cfg = newTestConfig(t, f.Server.URL)
	}
	return NewAPIClient(cfg, "test-token", zerolog.Nop())
}

// sentFrame is an outbound frame as seen on the wire.
type sentFrame struct {
	Op   Opcode          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// fakeConn is an in-memory gateway connection. Items pushed to incoming are
// read in order: an error is returned as a read failure, anything else is
// delivered as JSON.
type fakeConn struct {
	incoming chan any
	writes   chan sentFrame

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan any, 64),
		writes:   make(chan sentFrame, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case item := <-c.incoming:
		if err, ok := item.(error); ok {
			return err
		}
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var f sentFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	select {
	case c.writes <- f:
	default:
		return errors.New("fake conn write buffer full")
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(items ...any) {
	for _, item := range items {
		c.incoming <- item
	}
}

func (c *fakeConn) nextWrite(t *testing.T) sentFrame {
	t.Helper()
	select {
	case f := <-c.writes:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an outbound frame")
		return sentFrame{}
	}
}

func (c *fakeConn) noWrite(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.writes:
		t.Fatalf("unexpected outbound frame op=%d d=%s", f.Op, f.Data)
	default:
	}
}

func dialFake(conn *fakeConn) dialFunc {
	return func(context.Context, string) (gatewayConn, error) {
		return conn, nil
	}
}

// frame builds an inbound frame. A negative seq leaves s null.
func frame(op Opcode, typ string, seq int64, data any) map[string]any {
	f := map[string]any{"op": int(op), "d": data, "s": nil, "t": nil}
	if seq >= 0 {
		f["s"] = seq
	}
	if typ != "" {
		f["t"] = typ
	}
	return f
}

func helloFrame(intervalMS float64) map[string]any {
	return frame(OpHello, "", -1, map[string]any{"heartbeat_interval": intervalMS})
}

func readyFrame(seq int64) map[string]any {
	return frame(OpDispatch, EventReady, seq, map[string]any{
		"v":          9,
		"user":       map[string]any{"id": "1", "username": "me"},
		"session_id": "abc",
		"guilds": []any{map[string]any{
			"id":   "9",
			"name": "G",
			"channels": []any{
				map[string]any{"id": "20", "name": "general", "type": 0},
			},
		}},
	})
}

func messageFrame(seq int64, guildID any, id, content string) map[string]any {
	d := map[string]any{
		"id":         id,
		"channel_id": "20",
		"author":     map[string]any{"id": "2", "username": "bob"},
		"content":    content,
	}
	if guildID != nil {
		d["guild_id"] = guildID
	}
	return frame(OpDispatch, EventMessageCreate, seq, d)
}

// recordingClient records the events a session delivers.
type recordingClient struct {
	mu       sync.Mutex
	messages []*model.Message
	readies  []*model.Ready

	handleErr error
	initErr   error

	messageCh chan *model.Message
	readyCh   chan *model.Ready
}

func newRecordingClient() *recordingClient {
	return &recordingClient{
		messageCh: make(chan *model.Message, 16),
		readyCh:   make(chan *model.Ready, 4),
	}
}

func (c *recordingClient) HandleMessage(_ context.Context, msg *model.Message) error {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.messageCh <- msg
	return c.handleErr
}

func (c *recordingClient) Init(_ context.Context, ready *model.Ready) error {
	c.mu.Lock()
	c.readies = append(c.readies, ready)
	c.mu.Unlock()
	c.readyCh <- ready
	return c.initErr
}

func (c *recordingClient) Messages() []*model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]*model.Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// messageOnlyClient has no Init method.
type messageOnlyClient struct {
	messages chan *model.Message
}

func (c *messageOnlyClient) HandleMessage(_ context.Context, msg *model.Message) error {
	c.messages <- msg
	return nil
}

func newTestGateway(t *testing.T, client Client, conn *fakeConn) *GatewayClient {
	t.Helper()
	cfg := newTestConfig(t, "")
	return newGatewayClient(cfg, "test-token", client, dialFake(conn), zerolog.Nop())
}

// connectedGateway returns a gateway that finished the handshake on conn.
// The identify frame has been consumed.
func connectedGateway(t *testing.T, client Client) (*GatewayClient, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	g := newTestGateway(t, client, conn)
	conn.push(helloFrame(41250))
	if _, err := g.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if f := conn.nextWrite(t); f.Op != OpIdentify {
		t.Fatalf("expected identify, got op %d", f.Op)
	}
	return g, conn
}

// fakeGateway serves one websocket session per connection using script.
type fakeGateway struct {
	Server *httptest.Server
}

func newFakeGateway(t *testing.T, script func(t *testing.T, conn *websocket.Conn)) *fakeGateway {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(t, conn)
	}))
	t.Cleanup(srv.Close)
	return &fakeGateway{Server: srv}
}

// URL returns the ws:// URL of the gateway.
func (g *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.Server.URL, "http") + "/?v=9&encoding=json"
}

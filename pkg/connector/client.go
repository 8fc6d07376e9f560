// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/fbdc/pkg/model"
)

// Client receives the events of a gateway session.
type Client interface {
	HandleMessage(ctx context.Context, msg *model.Message) error
}

// Initializer is implemented by clients that want the ready snapshot.
// Clients without it get nothing when the session becomes ready.
type Initializer interface {
	Init(ctx context.Context, ready *model.Ready) error
}

// gatewayConn is the part of *websocket.Conn the session uses.
type gatewayConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (gatewayConn, error)

func dialWebsocket(ctx context.Context, url string) (gatewayConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// GatewayClient is one gateway session. It is not restartable: once Run
// returns, the client is closed for good.
type GatewayClient struct {
	cfg    *Config
	token  string
	client Client
	dial   dialFunc

	conn    gatewayConn
	writeMu sync.Mutex

	state   atomic.Int32
	started atomic.Bool

	seqMu   sync.Mutex
	lastSeq *int64

	intervalMu  sync.Mutex
	interval    time.Duration
	awaitingAck atomic.Bool

	log zerolog.Logger
}

// NewGatewayClient creates a session that delivers events to client. cfg
// must have been post-processed.
func NewGatewayClient(cfg *Config, token string, client Client, log zerolog.Logger) *GatewayClient {
	return newGatewayClient(cfg, token, client, dialWebsocket, log)
}

func newGatewayClient(cfg *Config, token string, client Client, dial dialFunc, log zerolog.Logger) *GatewayClient {
	return &GatewayClient{
		cfg:    cfg,
		token:  token,
		client: client,
		dial:   dial,
		log:    log.With().Str("component", "gateway").Logger(),
	}
}

// State returns the current lifecycle state.
func (g *GatewayClient) State() SessionState {
	return SessionState(g.state.Load())
}

func (g *GatewayClient) setState(s SessionState) {
	old := SessionState(g.state.Swap(int32(s)))
	if old != s {
		g.log.Debug().Stringer("from", old).Stringer("to", s).Msg("Session state changed")
	}
}

// LastSequence returns the most recent sequence number seen, if any.
func (g *GatewayClient) LastSequence() (int64, bool) {
	g.seqMu.Lock()
	defer g.seqMu.Unlock()
	if g.lastSeq == nil {
		return 0, false
	}
	return *g.lastSeq, true
}

func (g *GatewayClient) setSequence(seq int64) {
	g.seqMu.Lock()
	g.lastSeq = &seq
	g.seqMu.Unlock()
}

// HeartbeatInterval returns the interval negotiated in the hello frame, or 0
// before it arrived.
func (g *GatewayClient) HeartbeatInterval() time.Duration {
	g.intervalMu.Lock()
	defer g.intervalMu.Unlock()
	return g.interval
}

func (g *GatewayClient) setInterval(d time.Duration) error {
	g.intervalMu.Lock()
	defer g.intervalMu.Unlock()
	if g.interval != 0 {
		return ErrIntervalAlreadySet
	}
	if d <= 0 {
		return fmt.Errorf("invalid heartbeat interval %v", d)
	}
	g.interval = d
	return nil
}

func (g *GatewayClient) send(op Opcode, data any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := g.conn.WriteJSON(&outFrame{Op: op, Data: data}); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// sendHeartbeat sends a heartbeat on the regular cadence. Only these arm the
// ack check; replies to a gateway heartbeat request go through
// answerHeartbeat.
func (g *GatewayClient) sendHeartbeat() error {
	if err := g.writeHeartbeat(); err != nil {
		return err
	}
	g.awaitingAck.Store(true)
	return nil
}

// answerHeartbeat replies to an inbound heartbeat request. It leaves the ack
// check alone so a scheduled heartbeat that is already acknowledged is not
// reported as missed.
func (g *GatewayClient) answerHeartbeat() error {
	return g.writeHeartbeat()
}

func (g *GatewayClient) writeHeartbeat() error {
	// Snapshot under the lock; the frame references the latest sequence at
	// the time of sending.
	var seq *int64
	if s, ok := g.LastSequence(); ok {
		seq = &s
	}
	if err := g.send(OpHeartbeat, seq); err != nil {
		return err
	}
	ev := g.log.Trace()
	if seq != nil {
		ev = ev.Int64("seq", *seq)
	}
	ev.Msg("Sent heartbeat")
	return nil
}

// Connect opens the gateway connection, waits for hello and identifies. It
// returns the negotiated heartbeat interval. Whether the token was accepted
// is only known once the receive loop sees the ready event.
func (g *GatewayClient) Connect(ctx context.Context) (time.Duration, error) {
	g.setState(StateConnecting)
	g.log.Info().Str("gateway_url", g.cfg.GatewayURL).Msg("Connecting to gateway")
	conn, err := g.dial(ctx, g.cfg.GatewayURL)
	if err != nil {
		return 0, &TransportError{Op: "dial", Err: err}
	}
	g.conn = conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	g.setState(StateAwaitingHello)
	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil {
		return 0, g.readError(err)
	}
	if hello.Op != OpHello {
		return 0, &TransportError{Op: "handshake", Err: fmt.Errorf("%w: expected hello, got op %d", ErrUnexpectedFrame, hello.Op)}
	}
	var payload model.Hello
	if err := json.Unmarshal(hello.Data, &payload); err != nil {
		return 0, &TransportError{Op: "handshake", Err: fmt.Errorf("failed to decode hello: %w", err)}
	}
	interval := time.Duration(payload.HeartbeatInterval * float64(time.Millisecond))
	if err := g.setInterval(interval); err != nil {
		return 0, &TransportError{Op: "handshake", Err: err}
	}
	g.log.Debug().Dur("heartbeat_interval", interval).Msg("Received hello")

	g.setState(StateIdentifying)
	if err := g.send(OpIdentify, &identifyData{
		Token: g.token,
		Properties: identifyProperties{
			OS:      g.cfg.Identify.OS,
			Browser: g.cfg.Identify.Browser,
			Device:  g.cfg.Identify.Device,
		},
		Intents: g.cfg.Identify.Intents,
	}); err != nil {
		return 0, err
	}
	return interval, nil
}

// Run connects and serves the session until it fails or ctx is cancelled.
// Cancellation is a clean shutdown and returns nil. A second call returns
// ErrSessionClosed.
func (g *GatewayClient) Run(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	defer g.setState(StateClosed)

	interval, err := g.Connect(ctx)
	if err != nil {
		if g.conn != nil {
			_ = g.conn.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.receiveLoop(egCtx)
	})
	eg.Go(func() error {
		return g.heartbeatLoop(egCtx, interval)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		_ = g.conn.Close()
		return nil
	})
	err = eg.Wait()
	if ctx.Err() != nil {
		g.log.Info().Msg("Session closed")
		return nil
	}
	return err
}

// receiveLoop handles frames in arrival order until the connection fails.
func (g *GatewayClient) receiveLoop(ctx context.Context) error {
	for {
		var f Frame
		if err := g.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return g.readError(err)
		}
		if err := g.handleFrame(ctx, &f); err != nil {
			return err
		}
	}
}

// heartbeatLoop waits one interval, then sends a heartbeat every interval.
func (g *GatewayClient) heartbeatLoop(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if g.cfg.HeartbeatAckCheck && g.awaitingAck.Load() {
			return &TransportError{Op: "heartbeat", Err: ErrZombieConnection}
		}
		if err := g.sendHeartbeat(); err != nil {
			return err
		}
		timer.Reset(interval)
	}
}

func (g *GatewayClient) readError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == CloseAuthenticationFailed {
		return &AuthError{Code: closeErr.Code, Reason: closeErr.Text}
	}
	return &TransportError{Op: "read", Err: err}
}

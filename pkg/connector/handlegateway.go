// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/aiku/fbdc/pkg/model"
)

// handleFrame processes one inbound frame. A returned error ends the session.
func (g *GatewayClient) handleFrame(ctx context.Context, f *Frame) error {
	if f.Seq != nil {
		g.setSequence(*f.Seq)
	}

	switch f.Op {
	case OpDispatch:
		return g.handleDispatch(ctx, f)
	case OpHeartbeat:
		g.log.Debug().Msg("Gateway requested a heartbeat")
		return g.answerHeartbeat()
	case OpHeartbeatAck:
		g.awaitingAck.Store(false)
		return nil
	case OpReconnect:
		return &TransportError{Op: "receive", Err: ErrReconnectRequested}
	case OpInvalidSession:
		if g.State() == StateIdentifying {
			return &AuthError{Reason: "session was invalidated during identify"}
		}
		return &TransportError{Op: "receive", Err: ErrInvalidSession}
	case OpHello:
		// The interval is fixed for the connection; a repeated hello changes
		// nothing.
		g.log.Warn().Err(ErrIntervalAlreadySet).Msg("Ignoring repeated hello")
		return nil
	default:
		g.log.Trace().Int("op", int(f.Op)).Msg("Unhandled opcode")
		return nil
	}
}

// hasGuildContext reports whether a dispatch payload names a guild.
func hasGuildContext(data json.RawMessage) bool {
	guildID := gjson.GetBytes(data, "guild_id")
	return guildID.Exists() && guildID.Type != gjson.Null
}

func (g *GatewayClient) handleDispatch(ctx context.Context, f *Frame) error {
	if f.Type == EventReady {
		return g.handleReady(ctx, f)
	}
	if !hasGuildContext(f.Data) {
		g.log.Trace().Str("event_type", f.Type).Msg("Ignoring event without guild")
		return nil
	}

	switch f.Type {
	case EventMessageCreate:
		g.handleMessageCreate(ctx, f)
	default:
		g.log.Trace().Str("event_type", f.Type).Msg("Unhandled event type")
	}
	return nil
}

func (g *GatewayClient) handleReady(ctx context.Context, f *Frame) error {
	var ready model.Ready
	if err := json.Unmarshal(f.Data, &ready); err != nil {
		return &TransportError{Op: "receive", Err: fmt.Errorf("failed to decode ready event: %w", err)}
	}
	g.setState(StateReady)
	g.log.Info().
		Str("user_id", ready.User.ID).
		Str("username", ready.User.Username).
		Int("guilds", len(ready.Guilds)).
		Msg("Ready")

	if init, ok := g.client.(Initializer); ok {
		if err := init.Init(ctx, &ready); err != nil {
			return fmt.Errorf("failed to initialize client: %w", err)
		}
	}
	g.setState(StateRunning)
	return nil
}

func (g *GatewayClient) handleMessageCreate(ctx context.Context, f *Frame) {
	var msg model.Message
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		g.log.Warn().Err(err).Msg("Failed to decode message event")
		return
	}
	log := g.log.With().
		Str("message_id", msg.ID).
		Str("channel_id", msg.ChannelID).
		Str("guild_id", msg.GuildID).
		Logger()
	if err := g.client.HandleMessage(ctx, &msg); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Msg("Failed to handle message")
		return
	}
	log.Debug().Msg("Handled message")
}

// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"strings"

	"github.com/rs/xid"

	"github.com/aiku/fbdc/pkg/connector/discordfmt"
	"github.com/aiku/fbdc/pkg/envelope"
	"github.com/aiku/fbdc/pkg/model"
)

const (
	OpSendMessage   = "send_message"
	OpTriggerTyping = "trigger_typing"
	OpFetchMessages = "fetch_messages"
)

type operationFunc func(c *APIClient, ctx context.Context, req *envelope.Request) (*envelope.Response, error)

type operation struct {
	handle operationFunc
	// enabled gates an operation on configuration. Nil means always on.
	enabled func(cfg *Config) bool
}

var operations = map[string]operation{
	OpSendMessage:   {handle: (*APIClient).sendMessage},
	"message_send":  {handle: (*APIClient).sendMessage},
	OpTriggerTyping: {handle: (*APIClient).triggerTyping},
	OpFetchMessages: {
		handle:  (*APIClient).fetchMessages,
		enabled: func(cfg *Config) bool { return cfg.BackfillEnabled },
	},
}

// IssueRequest runs the operation named by req.Type. An unknown or disabled
// operation yields envelope.None and no error. A request whose fields cannot
// be used fails with *envelope.InvalidRequestError, and a failed REST call
// with *RequestError.
func (c *APIClient) IssueRequest(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	if req == nil {
		return envelope.None, nil
	}
	op, ok := operations[NormalizeOperation(req.Type)]
	if !ok || (op.enabled != nil && !op.enabled(c.cfg)) {
		c.log.Debug().Str("operation", req.Type).Msg("No operation matched request")
		return envelope.None, nil
	}
	return op.handle(c, ctx, req)
}

// requestChannel returns the channel ID of a request, checking that it is
// safe to place in a URL path.
func requestChannel(req *envelope.Request) (string, error) {
	channelID := req.GetString("channel_id")
	if !IsSnowflake(channelID) {
		return "", &envelope.InvalidRequestError{Type: req.Type, Reason: "channel_id " + quoteOrEmpty(channelID) + " is not a valid ID"}
	}
	return channelID, nil
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return `"` + s + `"`
}

type messageCreate struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce"`
}

func (c *APIClient) sendMessage(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	channelID, err := requestChannel(req)
	if err != nil {
		return nil, err
	}
	content := discordfmt.FromTrigger(req.GetString("content"))
	if strings.TrimSpace(content) == "" {
		return nil, &envelope.InvalidRequestError{Type: req.Type, Reason: "message content is empty"}
	}

	var sent model.Message
	status, err := c.Create(ctx, "channels/"+channelID+"/messages", &messageCreate{
		Content: content,
		Nonce:   xid.New().String(),
	}, &sent)
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("channel_id", channelID).
		Str("message_id", sent.ID).
		Msg("Sent message")
	return envelope.New(req.Type,
		envelope.F("status", status),
		envelope.F("message_id", sent.ID),
		envelope.F("channel_id", channelID),
	), nil
}

func (c *APIClient) triggerTyping(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	channelID, err := requestChannel(req)
	if err != nil {
		return nil, err
	}
	status, err := c.Create(ctx, "channels/"+channelID+"/typing", nil, nil)
	if err != nil {
		return nil, err
	}
	return envelope.New(req.Type, envelope.F("status", status)), nil
}

// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aiku/fbdc/pkg/envelope"
	"github.com/aiku/fbdc/pkg/model"
)

// fetchMessages reads recent channel history. The trigger content is an
// optional message count; the configured maximum is used when it is empty
// and caps it otherwise. Messages are returned oldest first.
func (c *APIClient) fetchMessages(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	channelID, err := requestChannel(req)
	if err != nil {
		return nil, err
	}

	maxCount := c.cfg.BackfillMaxCount
	if maxCount <= 0 {
		maxCount = defaultBackfillCount
	}
	limit := maxCount
	if raw := strings.TrimSpace(req.GetString("content")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, &envelope.InvalidRequestError{Type: req.Type, Reason: fmt.Sprintf("limit %q is not a positive number", raw)}
		}
		limit = min(n, maxCount)
	}

	var msgs []*model.Message
	status, err := c.Read(ctx, fmt.Sprintf("channels/%s/messages?limit=%d", channelID, limit), &msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for backfill: %w", err)
	}

	msgs = slices.DeleteFunc(msgs, func(m *model.Message) bool { return m == nil })
	slices.SortFunc(msgs, func(a, b *model.Message) int {
		return CompareSnowflakes(a.ID, b.ID)
	})
	guildID := req.GetString("guild_id")
	for _, m := range msgs {
		if m.GuildID == "" {
			m.GuildID = guildID
		}
	}

	c.log.Debug().
		Str("channel_id", channelID).
		Int("limit", limit).
		Int("count", len(msgs)).
		Msg("Fetched messages")
	return envelope.New(req.Type,
		envelope.F("status", status),
		envelope.F("messages", msgs),
	), nil
}

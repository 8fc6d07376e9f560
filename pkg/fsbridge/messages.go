// Copyright 2024-2026 Aiku AI

package fsbridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aiku/fbdc/pkg/connector/discordfmt"
	"github.com/aiku/fbdc/pkg/model"
)

// FormatRecord renders one messages log record. Continuation lines are
// indented by the width of the "<id>/<username>: " prefix, counted in
// characters rather than bytes.
func FormatRecord(id, username, content string) string {
	prefix := id + "/" + username + ": "
	lines := strings.Split(content, "\n")

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(lines[0])
	sb.WriteByte('\n')
	if len(lines) > 1 {
		indent := strings.Repeat(" ", utf8.RuneCountInString(prefix))
		for _, line := range lines[1:] {
			sb.WriteString(indent)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (b *Bridge) render(msg *model.Message) string {
	if b.opts.ResolveMentions {
		return discordfmt.Render(msg)
	}
	return msg.Content
}

// HandleMessage appends a message to its channel's log. Messages for
// channels that are not represented locally are skipped.
func (b *Bridge) HandleMessage(_ context.Context, msg *model.Message) error {
	if msg == nil {
		return nil
	}
	return b.appendMessages(msg.GuildID, msg.ChannelID, []*model.Message{msg})
}

func (b *Bridge) appendMessages(guildID, channelID string, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if guildID == "" || channelID == "" {
		return fmt.Errorf("message has no guild or channel")
	}
	if _, err := os.Stat(b.channelDir(guildID, channelID)); errors.Is(err, fs.ErrNotExist) {
		b.log.Debug().
			Str("guild_id", guildID).
			Str("channel_id", channelID).
			Msg("Channel not represented, dropping message")
		return nil
	}

	var sb strings.Builder
	for _, msg := range msgs {
		sb.WriteString(FormatRecord(msg.ID, msg.Author.Username, b.render(msg)))
	}

	path := b.MessagesPath(guildID, channelID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("failed to open messages log: %w", err)
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to messages log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close messages log: %w", err)
	}

	b.log.Debug().
		Str("guild_id", guildID).
		Str("channel_id", channelID).
		Int("count", len(msgs)).
		Msg("Logged messages")
	return nil
}

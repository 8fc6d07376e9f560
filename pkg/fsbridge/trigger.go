// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package fsbridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aiku/fbdc/pkg/envelope"
	"github.com/aiku/fbdc/pkg/model"
	"github.com/aiku/fbdc/pkg/watch"
)

// Trigger is a parsed trigger file path.
type Trigger struct {
	Operation string
	GuildID   string
	ChannelID string
	Path      string
}

// ParseTrigger recovers the operation, channel and guild from the position of
// a trigger file: root/{guild}/{channel}/api/{operation}.
func ParseTrigger(path string) (*Trigger, error) {
	api := filepath.Dir(path)
	if filepath.Base(api) != apiDir {
		return nil, fmt.Errorf("%s is not inside an %s directory", path, apiDir)
	}
	channelDir := filepath.Dir(api)
	guildDir := filepath.Dir(channelDir)
	t := &Trigger{
		Operation: filepath.Base(path),
		ChannelID: filepath.Base(channelDir),
		GuildID:   filepath.Base(guildDir),
		Path:      path,
	}
	if t.ChannelID == string(filepath.Separator) || t.GuildID == string(filepath.Separator) {
		return nil, fmt.Errorf("%s is too shallow to name a guild and channel", path)
	}
	return t, nil
}

// HandleTrigger consumes one trigger file: it reads the payload, issues the
// request and removes the file. The file is removed last and always, so a
// trigger is never retried.
func (b *Bridge) HandleTrigger(ctx context.Context, evt watch.Event) {
	log := b.log.With().
		Str("trigger_id", uuid.NewString()).
		Str("path", evt.Path).
		Logger()
	defer func() {
		if err := os.Remove(evt.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Msg("Failed to remove trigger file")
		}
	}()

	trigger, err := ParseTrigger(evt.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid request")
		return
	}
	log = log.With().
		Str("operation", trigger.Operation).
		Str("guild_id", trigger.GuildID).
		Str("channel_id", trigger.ChannelID).
		Logger()

	content, err := os.ReadFile(evt.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read trigger file")
		return
	}

	resp, err := b.requester.IssueRequest(ctx, envelope.New(trigger.Operation,
		envelope.F("guild_id", trigger.GuildID),
		envelope.F("channel_id", trigger.ChannelID),
		envelope.F("content", string(content)),
	))
	var invalid *envelope.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		log.Warn().Err(err).Msg("Invalid request")
		return
	case err != nil:
		log.Error().Err(err).Msg("Request failed")
		return
	case resp.IsNone():
		log.Warn().
			Err(&envelope.InvalidRequestError{Type: trigger.Operation, Reason: "unrecognized operation"}).
			Msg("Invalid request")
		return
	}

	if msgs, ok := resp.Get("messages"); ok {
		if list, ok := msgs.([]*model.Message); ok {
			if err := b.appendMessages(trigger.GuildID, trigger.ChannelID, list); err != nil {
				log.Error().Err(err).Msg("Failed to log fetched messages")
			}
		}
	}
	log.Info().Msg("Handled")
}

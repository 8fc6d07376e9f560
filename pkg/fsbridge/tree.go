// Copyright 2024-2026 Aiku AI

package fsbridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/aiku/fbdc/pkg/model"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	infoFile     = "info"
	messagesFile = "messages"
	apiDir       = "api"
)

func (b *Bridge) guildDir(guildID string) string {
	return filepath.Join(b.root, guildID)
}

func (b *Bridge) channelDir(guildID, channelID string) string {
	return filepath.Join(b.root, guildID, channelID)
}

// APIDir returns the watched trigger directory of a channel.
func (b *Bridge) APIDir(guildID, channelID string) string {
	return filepath.Join(b.channelDir(guildID, channelID), apiDir)
}

// MessagesPath returns the messages log of a channel.
func (b *Bridge) MessagesPath(guildID, channelID string) string {
	return filepath.Join(b.channelDir(guildID, channelID), messagesFile)
}

// FormatInfo renders the contents of an info file.
func FormatInfo(id, name string) string {
	return fmt.Sprintf("ID: %s\nName: %s\n", id, name)
}

func writeInfo(dir, id, name string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, infoFile)
	if err := os.WriteFile(path, []byte(FormatInfo(id, name)), fileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Init builds the representation tree from the ready snapshot and starts a
// watch on every represented channel's api directory. It can be run again
// on the same tree: info files are rewritten, message logs are kept, and
// channels that are already watched are not watched twice.
//
// Failing to watch a channel only disables its outbound triggers; the error
// is logged and Init carries on.
func (b *Bridge) Init(_ context.Context, ready *model.Ready) error {
	if ready == nil {
		return fmt.Errorf("ready snapshot is nil")
	}
	if err := writeInfo(b.root, ready.User.ID, ready.User.Username); err != nil {
		return err
	}

	var watchErrs *multierror.Error
	channels := 0
	for i := range ready.Guilds {
		guild := &ready.Guilds[i]
		if err := writeInfo(b.guildDir(guild.ID), guild.ID, guild.DisplayName()); err != nil {
			return err
		}
		for _, ch := range guild.Channels {
			if !ch.Type.IsRepresented() {
				b.log.Trace().
					Str("guild_id", guild.ID).
					Str("channel_id", ch.ID).
					Int("channel_type", int(ch.Type)).
					Msg("Skipping channel kind")
				continue
			}
			dir := b.channelDir(guild.ID, ch.ID)
			if err := os.MkdirAll(filepath.Join(dir, apiDir), dirMode); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			if err := writeInfo(dir, ch.ID, ch.Name); err != nil {
				return err
			}
			channels++
			if err := b.watchChannel(ch.ID, b.APIDir(guild.ID, ch.ID)); err != nil {
				watchErrs = multierror.Append(watchErrs, err)
			}
		}
	}

	if err := watchErrs.ErrorOrNil(); err != nil {
		b.log.Warn().Err(err).Msg("Some channels cannot send: watch setup failed")
	}
	b.log.Info().
		Str("root", b.root).
		Str("user_id", ready.User.ID).
		Int("guilds", len(ready.Guilds)).
		Int("channels", channels).
		Msg("Representation tree ready")
	return nil
}

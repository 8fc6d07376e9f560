// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package fsbridge

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/aiku/fbdc/pkg/envelope"
	"github.com/aiku/fbdc/pkg/watch"
)

// Requester issues outbound requests on behalf of trigger files. A None
// response means the operation was not recognized.
type Requester interface {
	IssueRequest(ctx context.Context, req *envelope.Request) (*envelope.Response, error)
}

// Options configures a Bridge.
type Options struct {
	// Watch tunes the pool that runs trigger handlers.
	Watch watch.Options
	// ResolveMentions renders user mentions and custom emoji as text in the
	// messages logs.
	ResolveMentions bool
}

// Bridge owns the local representation tree.
type Bridge struct {
	root      string
	requester Requester
	opts      Options

	dispatcher *watch.Dispatcher
	watchMu    sync.Mutex
	watches    map[string]*watch.Watch // channel ID -> watch

	log zerolog.Logger
}

// New creates a bridge rooted at root. Nothing is written until Init.
func New(root string, requester Requester, opts Options, log zerolog.Logger) (*Bridge, error) {
	if requester == nil {
		return nil, fmt.Errorf("requester is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	return &Bridge{
		root:       abs,
		requester:  requester,
		opts:       opts,
		dispatcher: watch.NewDispatcher(opts.Watch, log.With().Str("component", "watch").Logger()),
		watches:    make(map[string]*watch.Watch),
		log:        log,
	}, nil
}

// Root returns the absolute root directory.
func (b *Bridge) Root() string {
	return b.root
}

// Start launches the trigger workers. Triggers created before Start are
// queued and handled once it is called.
func (b *Bridge) Start(ctx context.Context) {
	b.dispatcher.Start(ctx)
}

// Close stops all channel watches and the trigger workers.
func (b *Bridge) Close() error {
	b.watchMu.Lock()
	var merr *multierror.Error
	for channelID, w := range b.watches {
		if err := w.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("channel %s: %w", channelID, err))
		}
		delete(b.watches, channelID)
	}
	b.watchMu.Unlock()
	b.dispatcher.Close()
	return merr.ErrorOrNil()
}

// Watching reports whether the api directory of a channel is being watched.
func (b *Bridge) Watching(channelID string) bool {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()
	_, ok := b.watches[channelID]
	return ok
}

// watchChannel starts at most one watch per channel.
func (b *Bridge) watchChannel(channelID, apiDir string) error {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()
	if _, ok := b.watches[channelID]; ok {
		return nil
	}
	w, err := b.dispatcher.Watch(apiDir, b.HandleTrigger)
	if err != nil {
		return err
	}
	b.watches[channelID] = w
	return nil
}

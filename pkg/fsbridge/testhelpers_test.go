// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package fsbridge

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/fbdc/pkg/envelope"
	"github.com/aiku/fbdc/pkg/model"
	"github.com/aiku/fbdc/pkg/watch"
)

// fakeRequester records issued requests and answers with a canned response.
type fakeRequester struct {
	mu       sync.Mutex
	requests []*envelope.Request

	// respond builds the response for a request. Nil answers None.
	respond func(req *envelope.Request) (*envelope.Response, error)
	issued  chan *envelope.Request
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{issued: make(chan *envelope.Request, 16)}
}

func (f *fakeRequester) IssueRequest(_ context.Context, req *envelope.Request) (*envelope.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	f.issued <- req

	if respond == nil {
		return envelope.None, nil
	}
	return respond(req)
}

func (f *fakeRequester) Requests() []*envelope.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*envelope.Request, len(f.requests))
	copy(cp, f.requests)
	return cp
}

// logBuffer collects log output written from any goroutine.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

func newTestBridge(t *testing.T, req Requester, opts Options) *Bridge {
	t.Helper()
	return newTestBridgeWithLog(t, req, opts, zerolog.Nop())
}

func newTestBridgeWithLog(t *testing.T, req Requester, opts Options, log zerolog.Logger) *Bridge {
	t.Helper()
	if opts.Watch.SettleDelay == 0 {
		opts.Watch.SettleDelay = -1
	}
	b, err := New(t.TempDir(), req, opts, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Start(context.Background())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// testSnapshot is one guild with a text channel, a voice channel and an
// announcement channel.
func testSnapshot() *model.Ready {
	return &model.Ready{
		User: model.User{ID: "1", Username: "me"},
		Guilds: []model.Guild{{
			ID:   "9",
			Name: "G",
			Channels: []model.Channel{
				{ID: "20", Name: "general", Type: model.ChannelTypeGuildText},
				{ID: "21", Name: "voice", Type: model.ChannelTypeGuildVoice},
				{ID: "22", Name: "news", Type: model.ChannelTypeGuildAnnouncement},
				{ID: "23", Name: "Text Channels", Type: model.ChannelTypeGuildCategory},
			},
		}},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// dropTrigger writes a trigger file outside the watched directory and moves
// it in, so the watcher never sees a half-written file.
func dropTrigger(t *testing.T, apiDir, name, content string) string {
	t.Helper()
	staging := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(staging, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(apiDir, name)
	if err := os.Rename(staging, dst); err != nil {
		t.Fatal(err)
	}
	return dst
}

func waitGone(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !exists(path) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s still exists", path)
}

func triggerEvent(b *Bridge, guildID, channelID, name string) watch.Event {
	dir := b.APIDir(guildID, channelID)
	return watch.Event{Path: filepath.Join(dir, name), Dir: dir}
}

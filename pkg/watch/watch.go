// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package watch delivers file-creation events from watched directories to
// handlers running on a bounded pool of workers.
//
// Each [Watch] owns one fsnotify watcher scoped to a single directory. Create
// events for regular files are queued on the owning [Dispatcher], whose
// workers call the handler. A full queue blocks the watch goroutine, so a
// burst of created files applies backpressure instead of spawning unbounded
// work. Handlers run concurrently and in no particular order.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 64
	DefaultSettleDelay = 100 * time.Millisecond
)

// Event is a file created inside a watched directory.
type Event struct {
	// Path is the absolute path of the created file.
	Path string
	// Dir is the watched directory the file was created in.
	Dir string
}

// Handler processes one event. It is called from a worker goroutine.
type Handler func(ctx context.Context, evt Event)

// WatchError reports a failure to set up a watch.
type WatchError struct {
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("failed to watch %s: %v", e.Path, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// Options tunes a Dispatcher. Zero values select the defaults.
type Options struct {
	Workers   int
	QueueSize int
	// SettleDelay is waited before a handler runs so that the writer of the
	// file has a chance to finish. Negative disables the delay.
	SettleDelay time.Duration
}

type job struct {
	evt     Event
	handler Handler
}

// Dispatcher runs handlers for events from any number of watches on a fixed
// number of workers.
type Dispatcher struct {
	workers int
	settle  time.Duration
	queue   chan job

	inflight *exsync.Set[string]

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	log zerolog.Logger
}

// NewDispatcher creates a dispatcher. Workers do not run until Start.
func NewDispatcher(opts Options, log zerolog.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	switch {
	case opts.SettleDelay == 0:
		opts.SettleDelay = DefaultSettleDelay
	case opts.SettleDelay < 0:
		opts.SettleDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		workers:  opts.Workers,
		settle:   opts.SettleDelay,
		queue:    make(chan job, opts.QueueSize),
		inflight: exsync.NewSet[string](),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
}

// Start launches the workers. Handlers receive a context derived from ctx.
// Calling Start more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				d.cancel()
			case <-d.ctx.Done():
			}
		}()
		d.log.Debug().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("Starting trigger workers")
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Close stops the workers after their current handler returns. Events still
// queued are dropped.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		d.cancel()
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case j := <-d.queue:
			d.run(j)
		}
	}
}

// run releases the path before calling the handler. Handlers usually
// delete the file they were given, and a file recreated after that must be
// queued again.
func (d *Dispatcher) run(j job) {
	if d.settle > 0 {
		select {
		case <-time.After(d.settle):
		case <-d.ctx.Done():
			d.inflight.Remove(j.evt.Path)
			return
		}
	}
	d.inflight.Remove(j.evt.Path)
	j.handler(d.ctx, j.evt)
}

// enqueue blocks until a worker slot is free in the queue or the dispatcher
// is closed. A path that is already waiting in the queue is not queued twice.
func (d *Dispatcher) enqueue(j job) {
	if !d.inflight.Add(j.evt.Path) {
		d.log.Debug().Str("path", j.evt.Path).Msg("Event already queued, skipping")
		return
	}
	select {
	case d.queue <- j:
	case <-d.ctx.Done():
		d.inflight.Remove(j.evt.Path)
	}
}

// Watch observes dir for created files and calls handler for each one.
func (d *Dispatcher) Watch(dir string, handler Handler) (*Watch, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &WatchError{Path: dir, Err: err}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WatchError{Path: abs, Err: err}
	}
	if err := fw.Add(abs); err != nil {
		_ = fw.Close()
		return nil, &WatchError{Path: abs, Err: err}
	}
	w := &Watch{
		dir:     abs,
		watcher: fw,
		handler: handler,
		d:       d,
		done:    make(chan struct{}),
		log:     d.log.With().Str("watch_dir", abs).Logger(),
	}
	go w.run()
	w.log.Debug().Msg("Watching directory")
	return w, nil
}

// Watch is an active observation of one directory.
type Watch struct {
	dir     string
	watcher *fsnotify.Watcher
	handler Handler
	d       *Dispatcher

	closeOnce sync.Once
	done      chan struct{}
	log       zerolog.Logger
}

// Dir returns the absolute watched directory.
func (w *Watch) Dir() string {
	return w.dir
}

// Close stops the watch. Events already queued are still handled.
func (w *Watch) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watch) run() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !evt.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(evt.Name); err != nil || info.IsDir() {
				continue
			}
			w.d.enqueue(job{
				evt:     Event{Path: evt.Name, Dir: w.dir},
				handler: w.handler,
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Watch error")
		}
	}
}

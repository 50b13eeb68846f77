// Package aof implements the append-only command log (§4.10, §6.3): every
// successful mutating command is appended, in the same RESP
// array-of-bulk-strings form it arrived in, to a local file; restart
// replays the log through the normal dispatcher. A background rewrite
// (BGREWRITEAOF) compacts the log to one command per live key.
package aof

import (
	"bufio"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"github.com/dreamware/torudis/internal/log"
	"github.com/dreamware/torudis/internal/resp"
)

const appendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// FsyncPolicy selects how often the log is flushed to stable storage.
type FsyncPolicy int

const (
	// FsyncAlways fsyncs after every appended command: highest
	// durability, lowest throughput.
	FsyncAlways FsyncPolicy = iota
	// FsyncEverySec fsyncs once a second in the background; up to ~1s
	// of writes can be lost on a crash.
	FsyncEverySec
	// FsyncNo never explicitly fsyncs, relying on the OS to flush
	// eventually.
	FsyncNo
)

// Writer appends commands to the live log file and governs its fsync
// cadence. It is safe for concurrent use by multiple command-executing
// goroutines.
type Writer struct {
	mu     sync.Mutex
	fs     afero.Fs
	path   string
	f      afero.File
	bw     *bufio.Writer
	policy FsyncPolicy

	dirty  bool
	ticker *cron.Cron
	tail   *TailBuffer // non-nil while a rewrite is in progress; see BeginRewrite
}

// TailBuffer accumulates the RESP-encoded commands executed while a
// rewrite is building its minimal log, so they can be appended after the
// rewrite file on completion (§4.10's "concatenated with the buffered
// tail").
type TailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *TailBuffer) append(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
}

// Bytes returns a copy of everything accumulated so far.
func (t *TailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}

// Open opens (creating if absent) the log file at path for appending.
func Open(fs afero.Fs, path string, policy FsyncPolicy) (*Writer, error) {
	f, err := fs.OpenFile(path, appendFlags, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		fs:     fs,
		path:   path,
		f:      f,
		bw:     bufio.NewWriter(f),
		policy: policy,
	}, nil
}

// Append encodes args as a RESP command and writes it to the log,
// honoring the configured fsync policy. Call this only after the
// command has already executed successfully against the keyspace, per
// §4.10.
func (w *Writer) Append(args [][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	encoded := resp.MarshalCommand(args)
	if _, err := w.bw.Write(encoded); err != nil {
		return err
	}
	if w.tail != nil {
		w.tail.append(encoded)
	}

	switch w.policy {
	case FsyncAlways:
		return w.flushAndSyncLocked()
	default:
		w.dirty = true
		return w.bw.Flush()
	}
}

func (w *Writer) flushAndSyncLocked() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	w.dirty = false
	return w.f.Sync()
}

// StartEverySecFsync begins the background fsync cadence for
// FsyncEverySec, on its own robfig/cron instance (the store's expiration
// sweeper runs on a separate one; snapshot autosave does not use cron).
func (w *Writer) StartEverySecFsync() {
	if w.policy != FsyncEverySec || w.ticker != nil {
		return
	}
	w.ticker = cron.New(cron.WithSeconds())
	logger := log.Component("aof")
	_, err := w.ticker.AddFunc("@every 1s", func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.dirty {
			return
		}
		if err := w.flushAndSyncLocked(); err != nil {
			logger.WithError(err).Error("everysec fsync failed")
		}
	})
	if err != nil {
		logger.WithError(err).Error("failed to schedule everysec fsync")
		return
	}
	w.ticker.Start()
}

// Stop halts the everysec ticker, if running, and performs a final sync.
func (w *Writer) Stop() {
	if w.ticker != nil {
		ctx := w.ticker.Stop()
		<-ctx.Done()
		w.ticker = nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.flushAndSyncLocked()
}

// Close flushes, syncs and closes the underlying file.
func (w *Writer) Close() error {
	w.Stop()
	return w.f.Close()
}

// BeginRewrite starts mirroring every subsequently appended command into
// an in-memory tail buffer, returned so the caller (BGREWRITEAOF) can
// concatenate it onto the freshly written minimal log once the rewrite
// finishes. Call FinishRewrite to stop mirroring.
func (w *Writer) BeginRewrite() *TailBuffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tail = &TailBuffer{}
	return w.tail
}

// FinishRewrite stops mirroring new commands into the tail buffer
// started by BeginRewrite.
func (w *Writer) FinishRewrite() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tail = nil
}

// Replace atomically swaps the live log file for newPath (the rewritten
// file, with the rewrite's tail buffer already appended to it by the
// caller), reopening the writer against the new file.
func (w *Writer) Replace(newPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushAndSyncLocked(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return err
	}
	if err := w.fs.Rename(newPath, w.path); err != nil {
		return err
	}
	f, err := w.fs.OpenFile(w.path, appendFlags, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.bw = bufio.NewWriter(f)
	return nil
}

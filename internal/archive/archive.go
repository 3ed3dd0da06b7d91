// Package archive persists comment logs as zstd-compressed JSONL and keeps
// per-channel resume checkpoints, so a restarted session can pick up from the
// last consumed pointer instead of re-downloading in full.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/nicolive-tools/ndgr-downloader/internal/assemble"
)

type Manager struct {
	baseDir string
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

func (m *Manager) channelDir(channel string) string {
	return filepath.Join(m.baseDir, channel)
}

// KakologPath is where a channel's full historical log lands.
func (m *Manager) KakologPath(channel string) string {
	return filepath.Join(m.channelDir(channel), "kakolog.jsonl.zst")
}

// WriteComments writes a complete comment log atomically: everything goes to
// a temp file first and is renamed into place only on success.
func (m *Manager) WriteComments(channel string, comments []assemble.Comment) (string, error) {
	dest := m.KakologPath(channel)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	err = writeJSONL(f, comments)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("writing comment log: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return dest, nil
}

func writeJSONL(w io.Writer, comments []assemble.Comment) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(zw)
	enc := json.NewEncoder(bw)
	for i := range comments {
		if err := enc.Encode(&comments[i]); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// ReadComments loads a previously written log.
func ReadComments(path string) ([]assemble.Comment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening zstd stream: %w", err)
	}
	defer zr.Close()

	var out []assemble.Comment
	dec := json.NewDecoder(zr)
	for {
		var c assemble.Comment
		if err := dec.Decode(&c); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decoding comment log: %w", err)
		}
		out = append(out, c)
	}
}

// Log is a streaming appender for live recording. Appends are flushed
// through to disk so an interrupted recording keeps what it saw.
type Log struct {
	mu sync.Mutex
	f  *os.File
	zw *zstd.Encoder
}

// OpenLog opens (or creates) a channel's live recording log. Each recording
// run gets its own timestamped file; zstd frames do not append cleanly across
// process restarts.
func (m *Manager) OpenLog(channel string) (*Log, error) {
	dir := m.channelDir(channel)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	name := fmt.Sprintf("live_%s.jsonl.zst", time.Now().Format("2006-01-02_15-04-05"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating live log: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Log{f: f, zw: zw}, nil
}

func (l *Log) Append(c assemble.Comment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(&c)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := l.zw.Write(line); err != nil {
		return err
	}
	return l.zw.Flush()
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.zw.Close()
	if closeErr := l.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Checkpoint records how far a session got: the last ReadyForNext time for
// live mode and the last fully consumed chain link for backward mode.
type Checkpoint struct {
	LiveAt      int64     `json:"live_at,omitempty"`
	BackwardURI string    `json:"backward_uri,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *Manager) checkpointPath(channel string) string {
	return filepath.Join(m.channelDir(channel), "checkpoint.json")
}

func (m *Manager) SaveCheckpoint(channel string, cp Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}

	dest := m.checkpointPath(channel)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	tmpPath := dest + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0640); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the channel's checkpoint and whether one exists.
func (m *Manager) LoadCheckpoint(channel string) (Checkpoint, bool, error) {
	data, err := os.ReadFile(m.checkpointPath(channel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("decoding checkpoint: %w", err)
	}
	return cp, true, nil
}

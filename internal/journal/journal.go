// Package journal persists lifecycle transitions to an append-only file so
// the recent-activity surface survives restarts. One JSON entry per line;
// on open the file is compacted down to the retained tail and a partially
// written trailing line is ignored.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sendwren/wren/internal/model"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755

	// DefaultRetain is how many transitions the journal keeps across
	// restarts and serves from memory.
	DefaultRetain = 500
)

type entry struct {
	Seq        uint64           `json:"seq"`
	Transition model.Transition `json:"transition"`
}

// Journal is a durable log of account lifecycle transitions. The retained
// tail is cached in memory so reads never touch the file.
type Journal struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	nextSeq uint64
	retain  int
	tail    []model.Transition // oldest first, at most retain entries
}

// Open creates or opens a journal at path, replaying the retained tail into
// memory and compacting anything older away.
func Open(path string, retain int) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal: path is empty")
	}
	if retain <= 0 {
		retain = DefaultRetain
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	entries, maxSeq, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	if len(entries) > retain {
		entries = entries[len(entries)-retain:]
	}
	if err := rewrite(path, entries); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	tail := make([]model.Transition, 0, len(entries))
	for _, e := range entries {
		tail = append(tail, e.Transition)
	}

	return &Journal{
		path:    path,
		file:    f,
		nextSeq: maxSeq + 1,
		retain:  retain,
		tail:    tail,
	}, nil
}

// Append persists one transition and adds it to the in-memory tail.
func (j *Journal) Append(tr model.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New("journal: closed")
	}

	e := entry{Seq: j.nextSeq, Transition: tr}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("journal: write entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: sync entry: %w", err)
	}
	j.nextSeq++

	j.tail = append(j.tail, tr)
	if len(j.tail) > j.retain {
		j.tail = j.tail[len(j.tail)-j.retain:]
	}
	return nil
}

// Recent returns up to limit transitions, newest first. A non-positive limit
// returns the whole retained tail.
func (j *Journal) Recent(limit int) []model.Transition {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := len(j.tail)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Transition, n)
	for i := 0; i < n; i++ {
		out[i] = j.tail[len(j.tail)-1-i]
	}
	return out
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func readEntries(path string) ([]entry, uint64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, defaultFileMode)
	if err != nil {
		return nil, 0, fmt.Errorf("journal: open for replay: %w", err)
	}
	defer f.Close()

	var (
		entries []entry
		maxSeq  uint64
	)
	reader := bufio.NewReader(f)
	for {
		line, rerr := reader.ReadBytes('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, 0, fmt.Errorf("journal: replay read: %w", rerr)
		}
		if len(line) == 0 {
			if errors.Is(rerr, io.EOF) {
				break
			}
			continue
		}
		if !strings.HasSuffix(string(line), "\n") {
			// Potentially partial trailing line from a crash mid-write.
			break
		}

		var e entry
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			// Stop at the first malformed line and keep replay deterministic.
			break
		}
		entries = append(entries, e)
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
	}
	return entries, maxSeq, nil
}

func rewrite(path string, entries []entry) error {
	tmpPath := path + ".compact"
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("journal: open compact tmp: %w", err)
	}

	w := bufio.NewWriter(dst)
	for _, e := range entries {
		line, merr := json.Marshal(e)
		if merr != nil {
			_ = dst.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("journal: compact marshal: %w", merr)
		}
		if _, werr := w.Write(append(line, '\n')); werr != nil {
			_ = dst.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("journal: compact write: %w", werr)
		}
	}
	if err := w.Flush(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact flush: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact sync: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact rename: %w", err)
	}
	return nil
}

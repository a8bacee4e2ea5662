package execution

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal event names. Every decision, including rejections, lands here.
const (
	EventRejected         = "REJECTED"
	EventUserRejected     = "USER_REJECTED"
	EventConnectionFailed = "CONNECTION_FAILED"
	EventExecuting        = "EXECUTING"
	EventEntryResult      = "ENTRY_RESULT"
	EventExitResult       = "EXIT_RESULT"
	EventReduceResult     = "REDUCE_RESULT"
)

// Journal appends newline-delimited JSON records to a file. Records are
// written in a single buffered write and flushed immediately, so each line
// is either fully present or absent after a crash. Safe for concurrent use.
type Journal struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) ensureOpenLocked() error {
	if j.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.file = f
	j.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// Append writes one event record. The payload is merged with the standard
// fields (id, event, pair_id, logged_at); payload keys never override them.
func (j *Journal) Append(event, pairID string, payload map[string]any) error {
	if j == nil {
		return nil
	}

	record := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		record[k] = v
	}
	record["id"] = uuid.NewString()
	record["event"] = event
	record["pair_id"] = pairID
	record["logged_at"] = time.Now().Format(time.RFC3339)

	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("journal marshal: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.ensureOpenLocked(); err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

// Close flushes buffered data and closes the file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var firstErr error
	if j.w != nil {
		if err := j.w.Flush(); err != nil {
			firstErr = err
		}
	}
	if j.file != nil {
		if err := j.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	j.w = nil
	j.file = nil
	return firstErr
}

package logging

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
	"github.com/google/uuid"
)

// writer decodes the logfmt records produced by slog's text handler, keeps
// the last limit of them in memory and forwards the raw bytes to out when set.
type writer struct {
	mu       sync.Mutex
	messages []Message
	limit    int
	out      io.Writer
}

func (w *writer) Write(p []byte) (int, error) {
	d := logfmt.NewDecoder(bytes.NewReader(p))
	var records []Message
	for d.ScanRecord() {
		msg := Message{
			ID:   uuid.NewString(),
			Time: time.Now(),
		}
		for d.ScanKeyval() {
			switch string(d.Key()) {
			case "time":
				parsed, err := time.Parse(time.RFC3339, string(d.Value()))
				if err != nil {
					return 0, fmt.Errorf("parsing time: %w", err)
				}
				msg.Time = parsed
			case "level":
				msg.Level = string(d.Value())
			case "msg":
				msg.Message = string(d.Value())
			default:
				msg.Attributes = append(msg.Attributes, Attr{
					Key:   string(d.Key()),
					Value: string(d.Value()),
				})
			}
		}
		records = append(records, msg)
	}
	if d.Err() != nil {
		return 0, d.Err()
	}

	w.mu.Lock()
	w.messages = append(w.messages, records...)
	if over := len(w.messages) - w.limit; over > 0 {
		w.messages = append(w.messages[:0], w.messages[over:]...)
	}
	out := w.out
	w.mu.Unlock()

	if out != nil {
		if _, err := out.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *writer) list() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Message(nil), w.messages...)
}

package logbuf

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/milwrite/botwatch/internal/domain"
)

// DefaultThreshold is the buffered line count that triggers an auto-flush
const DefaultThreshold = 100

// Writer buffers captured lines in memory and appends them to a sink in
// batches. Entries leave the buffer only after a successful write.
type Writer struct {
	mu        sync.Mutex // guards entries
	flushMu   sync.Mutex // one flush in flight
	entries   []domain.LogLine
	threshold int
	nextAuto  int  // buffered length that triggers the next auto-flush
	failing   bool // the last flush failed
	sink      io.Writer
	logger    *zap.Logger
}

// New creates a Writer over sink
func New(sink io.Writer, threshold int, logger *zap.Logger) *Writer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		sink:      sink,
		threshold: threshold,
		nextAuto:  threshold,
		logger:    logger,
	}
}

// Append buffers a line and flushes once the threshold is reached. While
// flushes fail, the next attempt waits for another threshold of lines and
// the failure is logged once per outage; the entries stay buffered.
func (w *Writer) Append(line domain.LogLine) {
	w.mu.Lock()
	w.entries = append(w.entries, line)
	full := len(w.entries) >= w.nextAuto
	w.mu.Unlock()

	if full {
		_ = w.Flush()
	}
}

// Flush writes every buffered line to the sink. Complete lines that reached
// the sink leave the buffer even when the write fails part way.
func (w *Writer) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := make([]domain.LogLine, len(w.entries))
	copy(batch, w.entries)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, l := range batch {
		buf.WriteString(l.Format())
		buf.WriteByte('\n')
	}
	n, err := w.sink.Write(buf.Bytes())
	written := len(batch)
	if err != nil {
		written = bytes.Count(buf.Bytes()[:max(0, min(n, buf.Len()))], []byte{'\n'})
	}

	// Lines appended while we were writing stay for the next flush.
	w.mu.Lock()
	w.entries = w.entries[written:]
	wasFailing := w.failing
	w.failing = err != nil
	if err != nil {
		w.nextAuto = len(w.entries) + w.threshold
	} else {
		w.nextAuto = w.threshold
	}
	w.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("append %d log lines (%d written): %w", len(batch), written, err)
		if !wasFailing {
			w.logger.Error(fmt.Sprintf("log flush failed, keeping buffered lines: %v", err))
		}
		return err
	}
	if wasFailing {
		w.logger.Info("log flush recovered", zap.Int("lines", len(batch)))
	}
	w.logger.Debug("flushed log buffer", zap.Int("lines", len(batch)))
	return nil
}

// Len returns the number of buffered lines
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Close flushes what is left and closes the sink when it is closable
func (w *Writer) Close() error {
	err := w.Flush()
	if c, ok := w.sink.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

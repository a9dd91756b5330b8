package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// TextSink writes one line per record.
type TextSink struct {
	w *bufio.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: bufio.NewWriter(w)}
}

func (s *TextSink) Emit(_ context.Context, records []Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(s.w, r.String()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (s *TextSink) Close() error {
	return s.w.Flush()
}

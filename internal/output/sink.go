package output

import (
	"context"
	"errors"
)

// Sink receives the records of each classified message.
type Sink interface {
	Emit(ctx context.Context, records []Record) error
	Close() error
}

// Multi fans records out to several sinks in order. Emitting stops at the
// first failing sink.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, records []Record) error {
	for _, s := range m {
		if err := s.Emit(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package results

import (
	"context"
	"errors"

	"github.com/Frostie0/braina-game-server/internal/game"
)

// MultiSink fans one terminal summary out to several sinks. Each sink gets
// its chance even when an earlier one fails.
type MultiSink struct {
	sinks []game.ResultSink
}

// NewMultiSink combines sinks; nils are skipped.
func NewMultiSink(sinks ...game.ResultSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Record(ctx context.Context, result game.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package bridge

import (
	"errors"
	"math"

	"github.com/viant/sqlite-vptree/convert"
	"github.com/viant/sqlite-vptree/index"
)

var (
	errNaNDistance      = errors.New("distance is NaN")
	errNegativeDistance = errors.New("distance is negative")
)

// distance is the index.DistanceFunc handed to the session's engine. Both
// elements are duplicated for the host, so the callback may keep or mutate
// its arguments without touching what the engine holds.
func (s *Session) distance(a, b index.Element) (float64, error) {
	host := s.bridge.host
	s.bridge.metrics.DistanceCallsTotal.Inc()
	da, err := host.Duplicate(a)
	if err != nil {
		return 0, s.callbackFailed(nil, err)
	}
	defer host.Release(da)
	db, err := host.Duplicate(b)
	if err != nil {
		return 0, s.callbackFailed(nil, err)
	}
	defer host.Release(db)

	result, err := s.callback.Call(s.callContext(), da, db)
	if err != nil {
		return 0, s.callbackFailed(nil, err)
	}
	d, err := convert.ToFloat64(result)
	switch {
	case err != nil:
		return 0, s.callbackFailed(result, err)
	case math.IsNaN(d):
		return 0, s.callbackFailed(result, errNaNDistance)
	case d < 0:
		return 0, s.callbackFailed(result, errNegativeDistance)
	}
	return d, nil
}

func (s *Session) callbackFailed(value any, err error) error {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		// already reported by a nested session
		return err
	}
	s.bridge.metrics.DistanceFailuresTotal.Inc()
	s.bridge.logger.Warn("distance callback failed", "session", s.id, "value", value, "error", err)
	return &CallbackError{Value: value, Err: err}
}

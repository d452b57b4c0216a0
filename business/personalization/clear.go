package personalization

import (
	"context"
	"errors"
	"fmt"
)

// ClearPersonalizationData deletes every key owned by the engine. Deletion
// continues past individual failures; the result is false if any key remains.
func (s *Service) ClearPersonalizationData(ctx context.Context) (ok bool) {
	defer s.recoverTo(ctx, "clear", func() { ok = false })
	unlock := s.lock()
	defer unlock()

	var errs []error
	for _, key := range AllKeys {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.fail(ctx, "clear", err)
		return false
	}

	s.debug("personalization data cleared", "trace_id", TraceIDFromContext(ctx))
	return true
}

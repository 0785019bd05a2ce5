package service

import (
	"context"
	"errors"

	"talentgate/internal/sentinel"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/requestcontext"
)

// Observability helpers for logging and metrics.

func (s *Service) logEvent(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, event, append(attributes, "event", event)...)
}

// authFailure logs a rejected operation and counts it by reason. The error
// passed in is returned unchanged.
func (s *Service) authFailure(ctx context.Context, operation string, err error, attributes ...any) error {
	reason := string(dErrors.CodeOf(err))
	if reason == "" {
		reason = "internal_error"
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "operation", operation, "reason", reason)
	if dErrors.HasCode(err, dErrors.CodeAuthInfrastructure) || dErrors.HasCode(err, dErrors.CodeInternal) {
		s.logger.ErrorContext(ctx, "auth operation failed", append(args, "error", err)...)
	} else {
		s.logger.WarnContext(ctx, "auth operation rejected", args...)
	}
	s.metrics.IncrementAuthFailures(operation, reason)
	return err
}

// translateUserError maps user store failures into domain errors.
func translateUserError(err error, notFound dErrors.Code, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, notFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "account already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeAuthInfrastructure, "user repository unavailable")
	}
}

// translateStoreError maps organization and membership store failures.
func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeAuthInfrastructure, msg)
	}
}

package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/lib/pq"
)

// classifyStoreError maps an unexpected store failure onto the error taxonomy.
func classifyStoreError(ctx context.Context, err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.ErrTimeout.Wrap(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42501":
			return apperrors.ErrPermissionDenied.Wrap(err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code == "57P03":
			return apperrors.ErrUnavailable.Wrap(err)
		// deadlock_detected, serialization_failure: safe to retry
		case pqErr.Code == "40P01", pqErr.Code == "40001":
			return apperrors.ErrUnavailable.Wrap(err)
		}
		return apperrors.ErrInternal.Wrap(err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return apperrors.ErrUnavailable.Wrap(err)
	}

	return apperrors.ErrInternal.Wrap(err)
}

var remediation = map[apperrors.Kind]string{
	apperrors.KindPermissionDenied: "Permission denied. Sign in again and make sure the room rules are deployed.",
	apperrors.KindUnavailable:      "Service unavailable or rate limited. Check your connection and try again later.",
	apperrors.KindTimeout:          "Creating the room took too long. Check your network connection and that the database is reachable, then try again.",
	apperrors.KindUnknown:          "Could not create the room. Please try again.",
}

// withRemediation attaches the user-facing fix for a room creation failure
func withRemediation(err *apperrors.AppError) *apperrors.AppError {
	text, ok := remediation[err.Kind]
	if !ok {
		text = remediation[apperrors.KindUnknown]
	}
	return err.WithDetails(map[string]string{"remediation": text})
}

package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound converts sql.ErrNoRows into a nil result without error.
// Find* queries treat a missing row as an answer, not a failure; services
// decide whether nil means NotFound, a stale invitation, or a superseded
// token.
//
// Usage:
//
//	var deal model.Deal
//	err := r.db.GetContext(ctx, &deal, query, args...)
//	return HandleNotFound(&deal, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

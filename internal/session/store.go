// Package session keeps the server-side half of a login session: a record
// mapping an opaque session id to the user it authenticates.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	// Put records that session id authenticates userID for ttl.
	Put(ctx context.Context, id, userID string, ttl time.Duration) error
	// Get returns the user id for a live session, or ErrNotFound.
	Get(ctx context.Context, id string) (string, error)
	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

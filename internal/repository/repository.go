package repository

import (
	"context"
	"errors"
	"fmt"

	"daycounter/internal/model"
)

// EventRepository persists the event collection. Implementations are
// swappable storage adapters.
//
// Save upserts by id with full replacement (never a field merge). Fetch
// returns the whole collection; order is adapter-defined. Delete of an
// unknown id is a no-op. Clear empties the collection.
//
// The contract defines no atomicity across a Fetch/modify/Save cycle:
// concurrent callers on one collection get last-write-wins.
type EventRepository interface {
	Save(ctx context.Context, ev model.Event) error
	Fetch(ctx context.Context) ([]model.Event, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// SettingsRepository stores small string settings such as the daily summary
// time. GetSetting reports ok=false for a key that was never set.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store is what the storage adapters provide.
type Store interface {
	EventRepository
	SettingsRepository
	Close() error
}

// StorageError reports a failure from a storage adapter. Callers treat it as
// recoverable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap returns err as a *StorageError for op. A nil err stays nil and an
// error that already is a StorageError is returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

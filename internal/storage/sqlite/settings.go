package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"daycounter/internal/repository"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, repository.Wrap("get setting", fmt.Errorf("get setting %q: %w", key, err))
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return repository.Wrap("set setting", fmt.Errorf("set setting %q: %w", key, err))
	}
	return nil
}

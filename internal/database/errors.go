package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrManagerClosed = errors.New("database manager is closed")
	ErrWriteTimeout  = errors.New("database write timeout")
	ErrSlideNotFound = errors.New("slide not found")
)

// isRetryable reports whether a write failed on lock contention.
func isRetryable(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

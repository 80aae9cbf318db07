package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutSnapshot inserts or replaces the value stored under key.
func (db *DB) PutSnapshot(key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO snapshots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(value), time.Now().UnixMilli())
	return err
}

// PutSnapshots writes several entries in one transaction.
func (db *DB) PutSnapshots(entries map[string][]byte) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for k, v := range entries {
		if _, err := tx.Exec(`
			INSERT INTO snapshots (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at`,
			k, string(v), now); err != nil {
			return fmt.Errorf("put %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshots: %w", err)
	}
	return nil
}

// GetSnapshot returns the value stored under key. ok is false when the key
// has never been written.
func (db *DB) GetSnapshot(key string) (value []byte, ok bool, err error) {
	var s string
	err = db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(s), true, nil
}

// DeleteSnapshot removes key. Missing keys are not an error.
func (db *DB) DeleteSnapshot(key string) error {
	_, err := db.Exec(`DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

// SnapshotKeys lists stored keys with the given prefix in key order.
func (db *DB) SnapshotKeys(prefix string) ([]string, error) {
	rows, err := db.Query(`SELECT key FROM snapshots WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/quota"
)

// QuotaStore is the relational fallback for the quota ledger. Reservations of
// one key are serialized by an advisory lock on Postgres and by the single
// connection on SQLite.
type QuotaStore struct {
	db *DB
}

// Quota returns the quota ledger backed by this database.
func (d *DB) Quota() *QuotaStore {
	return &QuotaStore{db: d}
}

var _ quota.Store = (*QuotaStore)(nil)

// Reserve implements quota.Store.
func (s *QuotaStore) Reserve(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (quota.Window, bool, error) {
	d := s.db
	nowMs := now.UnixMilli()
	cutoff := nowMs - window.Milliseconds()

	var (
		w       quota.Window
		allowed bool
	)
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if d.dialect.quotaLock != "" {
			if _, err := d.exec(ctx, tx, d.dialect.quotaLock, key); err != nil {
				return fmt.Errorf("lock %s: %w", key, err)
			}
		}
		if _, err := d.exec(ctx, tx, `DELETE FROM quota_events WHERE quota_key = ? AND ts < ?`, key, cutoff); err != nil {
			return fmt.Errorf("trim %s: %w", key, err)
		}

		count, oldest, err := s.window(ctx, tx, key, cutoff)
		if err != nil {
			return err
		}
		if count < limit {
			member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()
			if _, err := d.exec(ctx, tx, `INSERT INTO quota_events (quota_key, ts, member) VALUES (?, ?, ?)`,
				key, nowMs, member); err != nil {
				return fmt.Errorf("append %s: %w", key, err)
			}
			if count == 0 {
				oldest = nowMs
			}
			count++
			allowed = true
		}
		w = windowOf(count, oldest)
		return nil
	})
	if err != nil {
		return quota.Window{}, false, err
	}
	return w, allowed, nil
}

// Count implements quota.Store.
func (s *QuotaStore) Count(ctx context.Context, key string, window time.Duration, now time.Time) (quota.Window, error) {
	cutoff := now.UnixMilli() - window.Milliseconds()
	count, oldest, err := s.window(ctx, s.db.db, key, cutoff)
	if err != nil {
		return quota.Window{}, err
	}
	return windowOf(count, oldest), nil
}

func (s *QuotaStore) window(ctx context.Context, q queryer, key string, cutoff int64) (int, int64, error) {
	var (
		count  int
		oldest sql.NullInt64
	)
	err := s.db.queryRow(ctx, q, `SELECT COUNT(*), MIN(ts) FROM quota_events WHERE quota_key = ? AND ts >= ?`,
		key, cutoff).Scan(&count, &oldest)
	if err != nil {
		return 0, 0, fmt.Errorf("count %s: %w", key, err)
	}
	return count, oldest.Int64, nil
}

func windowOf(count int, oldestMs int64) quota.Window {
	if count == 0 {
		return quota.Window{}
	}
	return quota.Window{Count: count, Oldest: time.UnixMilli(oldestMs).UTC()}
}

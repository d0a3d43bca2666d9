package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cart-service/internal/sharding"
)

// StoredCart is one persisted cart snapshot, unique per (identifier, instance).
type StoredCart struct {
	Identifier string    `json:"identifier"`
	Instance   string    `json:"instance"`
	Content    []byte    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CartRepository persists cart snapshots across a set of database shards,
// routed by identifier.
type CartRepository struct {
	dbShards []*sql.DB
	router   *sharding.ShardRouter
	table    string
}

func NewCartRepository(dbShards []*sql.DB, router *sharding.ShardRouter, table string) *CartRepository {
	return &CartRepository{dbShards: dbShards, router: router, table: table}
}

func (r *CartRepository) db(identifier string) *sql.DB {
	return r.dbShards[r.router.GetShard(identifier)]
}

// Upsert writes the snapshot for (identifier, instance), replacing content
// and updated_at in place when a row already exists. created_at is only set
// on first insert, so the unique key guarantees at most one row per pair.
func (r *CartRepository) Upsert(ctx context.Context, stored *StoredCart) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (identifier, instance, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE content = VALUES(content), updated_at = VALUES(updated_at)`, r.table)

	_, err := r.db(stored.Identifier).ExecContext(ctx, query,
		stored.Identifier, stored.Instance, stored.Content, stored.CreatedAt, stored.UpdatedAt)
	return err
}

// Find returns the stored snapshot for (identifier, instance), or nil when
// none exists.
func (r *CartRepository) Find(ctx context.Context, identifier, instance string) (*StoredCart, error) {
	query := fmt.Sprintf(`SELECT identifier, instance, content, created_at, updated_at FROM %s WHERE identifier = ? AND instance = ?`, r.table)

	stored := &StoredCart{}
	err := r.db(identifier).QueryRowContext(ctx, query, identifier, instance).
		Scan(&stored.Identifier, &stored.Instance, &stored.Content, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return stored, nil
}

// Exists reports whether a snapshot is stored for (identifier, instance).
func (r *CartRepository) Exists(ctx context.Context, identifier, instance string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE identifier = ? AND instance = ?)`, r.table)

	var exists bool
	err := r.db(identifier).QueryRowContext(ctx, query, identifier, instance).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// Delete removes the snapshot for (identifier, instance) and returns the
// number of rows removed.
func (r *CartRepository) Delete(ctx context.Context, identifier, instance string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE identifier = ? AND instance = ?`, r.table)

	res, err := r.db(identifier).ExecContext(ctx, query, identifier, instance)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

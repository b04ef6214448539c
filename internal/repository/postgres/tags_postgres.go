package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"siteimage/internal/repository"
)

// TagPostgres is a PostgreSQL implementation of repository.TagRepository for deployments
// where several processes share one storage root. It contains no business logic.
type TagPostgres struct {
	db *sql.DB
}

// NewTagPostgres creates a new TagPostgres repository.
func NewTagPostgres(db *sql.DB) *TagPostgres {
	return &TagPostgres{db: db}
}

var _ repository.TagRepository = (*TagPostgres)(nil)

// Add inserts one row per tag inside a transaction; existing pairs are left alone.
func (r *TagPostgres) Add(ctx context.Context, publicID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	const q = `
		INSERT INTO image_tags (tag, public_id)
		VALUES ($1, $2)
		ON CONFLICT (tag, public_id) DO NOTHING
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, q, tag, publicID); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return tx.Commit()
}

// Tagged lists public ids for a tag in ascending order.
func (r *TagPostgres) Tagged(ctx context.Context, tag string) ([]string, error) {
	const q = `SELECT public_id FROM image_tags WHERE tag = $1 ORDER BY public_id`
	return r.strings(ctx, q, tag)
}

// TagsFor lists the tags of a public id in ascending order.
func (r *TagPostgres) TagsFor(ctx context.Context, publicID string) ([]string, error) {
	const q = `SELECT tag FROM image_tags WHERE public_id = $1 ORDER BY tag`
	return r.strings(ctx, q, publicID)
}

// Remove deletes every row of a public id. It does not fail when there are none.
func (r *TagPostgres) Remove(ctx context.Context, publicID string) error {
	const q = `DELETE FROM image_tags WHERE public_id = $1`
	_, err := r.db.ExecContext(ctx, q, publicID)
	return err
}

// Rename copies the tags of from onto to and deletes the old rows in one transaction.
func (r *TagPostgres) Rename(ctx context.Context, from, to string) error {
	const qCopy = `
		INSERT INTO image_tags (tag, public_id)
		SELECT tag, $2 FROM image_tags WHERE public_id = $1
		ON CONFLICT (tag, public_id) DO NOTHING
	`
	const qDelete = `DELETE FROM image_tags WHERE public_id = $1`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, qCopy, from, to); err != nil {
		return fmt.Errorf("copy tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, qDelete, from); err != nil {
		return fmt.Errorf("delete old tags: %w", err)
	}
	return tx.Commit()
}

// Clear deletes every row.
func (r *TagPostgres) Clear(ctx context.Context) error {
	const q = `DELETE FROM image_tags`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

func (r *TagPostgres) strings(ctx context.Context, q string, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

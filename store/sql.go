package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"komugigallery.com/gallery/models"
)

// SQLStore keeps posts in the tables created by database.ConnectDB. Queries use
// $n placeholders and standard SQL only, so the same statements run on
// Postgres (lib/pq or pgx) and SQLite.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const tagFilterClause = `EXISTS (
	SELECT 1 FROM post_tags t
	WHERE t.post_id = p.id AND LOWER(t.tag) LIKE '%' || LOWER($1) || '%' ESCAPE '\'
)`

func (s *SQLStore) Insert(ctx context.Context, p *models.Post) error {
	urls, err := json.Marshal(copyStrings(p.ImageURLs))
	if err != nil {
		return err
	}
	publicIDs, err := json.Marshal(copyStrings(p.ImagePublicIDs))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(copyStrings(p.Tags))
	if err != nil {
		return err
	}

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, image_urls, image_public_ids, tags, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(urls), string(publicIDs), string(tags), p.CreatedAt.UTC(), p.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	if err := insertTags(ctx, tx, id, p.Tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	p.ID = id
	return nil
}

func (s *SQLStore) Find(ctx context.Context, q PostQuery) ([]models.Post, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	skip := q.Skip
	if skip < 0 {
		skip = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	const columns = `SELECT p.id, p.image_urls, p.image_public_ids, p.tags, p.created_at, p.created_by FROM posts p`
	if q.Tag != "" {
		rows, err = s.db.QueryContext(ctx, columns+`
			WHERE `+tagFilterClause+`
			ORDER BY p.created_at DESC
			LIMIT $2 OFFSET $3`,
			escapeLike(q.Tag), limit, skip)
	} else {
		rows, err = s.db.QueryContext(ctx, columns+`
			ORDER BY p.created_at DESC
			LIMIT $1 OFFSET $2`,
			limit, skip)
	}
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *SQLStore) Count(ctx context.Context, tag string) (int, error) {
	var n int
	var err error
	if tag != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM posts p WHERE `+tagFilterClause, escapeLike(tag)).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, image_urls, image_public_ids, tags, created_at, created_by
		FROM posts
		WHERE id = $1`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	encoded, err := json.Marshal(copyStrings(tags))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET tags = $1 WHERE id = $2`, string(encoded), id)
	if err != nil {
		return fmt.Errorf("update tags: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, id); err != nil {
		return err
	}
	if err := insertTags(ctx, tx, id, tags); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) TagSets(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM posts ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var sets [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		sets = append(sets, tags)
	}
	return sets, rows.Err()
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin
		FROM users
		WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) SaveUser(ctx context.Context, u *models.User) error {
	if existing, err := s.FindByUsername(ctx, u.Username); err == nil {
		u.ID = existing.ID
		_, err := s.db.ExecContext(ctx, `
			UPDATE users SET password_hash = $1, is_admin = $2
			WHERE username = $3`,
			u.PasswordHash, u.IsAdmin, u.Username)
		return err
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, id, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)`,
		u.Username, u.ID, u.PasswordHash, u.IsAdmin)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		p                     models.Post
		urls, publicIDs, tags string
		createdAt             time.Time
	)
	if err := row.Scan(&p.ID, &urls, &publicIDs, &tags, &createdAt, &p.CreatedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(urls), &p.ImageURLs); err != nil {
		return nil, fmt.Errorf("decode image_urls: %w", err)
	}
	if err := json.Unmarshal([]byte(publicIDs), &p.ImagePublicIDs); err != nil {
		return nil, fmt.Errorf("decode image_public_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.CreatedAt = createdAt.UTC()
	return &p, nil
}

func insertTags(ctx context.Context, tx *sql.Tx, postID string, tags []string) error {
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, position, tag) VALUES ($1, $2, $3)`,
			postID, i, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// escapeLike makes % and _ in a user filter match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

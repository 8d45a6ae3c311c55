package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/openworld/internal/model"
	"github.com/sakif/openworld/internal/repository"
)

var _ repository.ProjectRepository = (*DB)(nil)

// sampleProjects are the demo listings inserted into an empty catalog.
// They belong to user 1, who may not exist yet; the list query shows them as
// created by "anonymous" until someone registers.
var sampleProjects = []model.Project{
	{
		UserID:      1,
		Title:       "AI Code Assistant",
		Description: "An intelligent coding assistant powered by machine learning",
		Tags:        []string{"AI", "Machine Learning", "TypeScript"},
		Stars:       42,
	},
	{
		UserID:      1,
		Title:       "Quantum Computing Simulator",
		Description: "A web-based quantum circuit simulator for educational purposes",
		Tags:        []string{"Quantum", "Education", "WebAssembly"},
		Stars:       28,
	},
}

// CreateProject inserts a new project with zero stars.
func (db *DB) CreateProject(ctx context.Context, project *model.Project) error {
	tags, err := encodeTags(project.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	project.Stars = 0
	project.CreatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO projects (user_id, title, description, tags, stars, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.UserID,
		project.Title,
		project.Description,
		tags,
		project.Stars,
		project.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new project id: %w", err)
	}
	project.ID = id

	return nil
}

// ListProjects returns every project, newest first.
//
// LEFT JOIN keeps projects whose creator no longer resolves; COALESCE swaps
// the missing email for "anonymous". The contributor count is a scalar
// subquery over the whole users table, so every row carries the same value.
//
// created_at ties (two inserts in the same instant, or the seeded rows) are
// broken by id, which AUTOINCREMENT keeps in insertion order.
func (db *DB) ListProjects(ctx context.Context) ([]model.ProjectView, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.title, COALESCE(p.description, ''), p.tags,
		        p.stars, p.created_at,
		        COALESCE(u.email, ?) AS creator_email,
		        (SELECT COUNT(*) FROM users) AS contributors
		 FROM projects p
		 LEFT JOIN users u ON p.user_id = u.id
		 ORDER BY p.created_at DESC, p.id DESC`,
		model.AnonymousCreator,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects: %w", err)
	}
	defer rows.Close()

	// Never nil: an empty catalog encodes as [] rather than null.
	projects := make([]model.ProjectView, 0)

	for rows.Next() {
		var (
			p    model.ProjectView
			tags sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Title, &p.Description, &tags,
			&p.Stars, &p.CreatedAt,
			&p.CreatorEmail, &p.Contributors,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		p.Tags = decodeTags(tags)
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	return projects, nil
}

// StarProject increments a project's star count by one.
//
// The increment happens inside SQLite (stars = stars + 1), never as a
// read in Go followed by a write, so concurrent stars cannot overwrite each
// other. The returned bool is false when no project has that id; the caller
// decides whether that matters.
func (db *DB) StarProject(ctx context.Context, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET stars = stars + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: starring project %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// SeedSampleProjects inserts sampleProjects if the projects table is empty.
// It reports whether anything was inserted. The count and the inserts share
// one transaction so the check cannot go stale before the writes land.
func (db *DB) SeedSampleProjects(ctx context.Context) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning seed transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return false, fmt.Errorf("sqlite: counting projects: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := time.Now().UTC()
	for _, p := range sampleProjects {
		tags, err := encodeTags(p.Tags)
		if err != nil {
			return false, fmt.Errorf("sqlite: encoding sample tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (user_id, title, description, tags, stars, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.UserID, p.Title, p.Description, tags, p.Stars, now,
		); err != nil {
			return false, fmt.Errorf("sqlite: inserting sample project %q: %w", p.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing seed: %w", err)
	}

	return true, nil
}

// encodeTags serializes tags into the TEXT column. A nil slice is stored as
// "[]" so every row written by this code holds a valid JSON array.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeTags turns the stored TEXT back into a slice. NULL, empty and
// unparseable values all decode to an empty slice: a bad tags column must not
// break the whole listing.
func decodeTags(raw sql.NullString) []string {
	tags := []string{}
	if !raw.Valid || raw.String == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

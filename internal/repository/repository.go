// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation; service tests
// use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/openworld/internal/model"
)

// UserRepository reads and writes user accounts.
type UserRepository interface {
	// CreateUser inserts user and fills in ID and CreatedAt.
	// Returns apperror.ErrConflict if the email is already taken.
	CreateUser(ctx context.Context, user *model.User) error
	// GetUserByEmail returns apperror.ErrNotFound when no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ProjectRepository reads and writes catalog projects.
type ProjectRepository interface {
	// CreateProject inserts project and fills in ID, Stars and CreatedAt.
	CreateProject(ctx context.Context, project *model.Project) error
	// ListProjects returns every project newest first, joined with its
	// creator's email and the global contributor count.
	ListProjects(ctx context.Context) ([]model.ProjectView, error)
	// StarProject adds exactly one star in a single statement. The bool
	// reports whether a row matched; a missing id is not an error.
	StarProject(ctx context.Context, id int64) (bool, error)
	// SeedSampleProjects inserts the demo listings if the table is empty.
	SeedSampleProjects(ctx context.Context) (bool, error)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/openworld/internal/apperror"
	"github.com/sakif/openworld/internal/auth"
	"github.com/sakif/openworld/internal/metrics"
	"github.com/sakif/openworld/internal/model"
	"github.com/sakif/openworld/internal/repository"
)

const MsgTitleRequired = "Title is required"

// ProjectService handles the catalog listing, creation and starring rules.
type ProjectService struct {
	repo   repository.ProjectRepository
	logger *slog.Logger
}

func NewProjectService(repo repository.ProjectRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		repo:   repo,
		logger: logger,
	}
}

// List returns every project, newest first. Never nil.
func (s *ProjectService) List(ctx context.Context) ([]model.ProjectView, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		s.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// Create adds a project owned by the authenticated caller.
//
// Ownership is recorded and nothing more: any valid token may create, and
// any valid token may star, regardless of who the owner is.
func (s *ProjectService) Create(ctx context.Context, owner *auth.Identity, title, description string, tags []string) (*model.Project, error) {
	if owner == nil {
		return nil, apperror.Unauthorized(auth.MsgTokenRequired)
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperror.ValidationFailed("title", MsgTitleRequired)
	}

	project := &model.Project{
		UserID:      owner.UserID,
		Title:       title,
		Description: description,
		Tags:        tags,
	}

	if err := s.repo.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project",
			slog.Int64("userID", owner.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	metrics.ProjectsCreated.Inc()
	s.logger.Info("project created",
		slog.Int64("id", project.ID),
		slog.Int64("userID", owner.UserID),
	)

	return project, nil
}

// Star adds one star to the project with the given id.
//
// A star on an id that matches no project succeeds without changing
// anything. Clients have always received a success for it, so it stays that
// way; the warning makes it visible in the logs.
func (s *ProjectService) Star(ctx context.Context, id int64) error {
	found, err := s.repo.StarProject(ctx, id)
	if err != nil {
		s.logger.Error("failed to star project",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("starring project: %w", err)
	}

	metrics.ProjectStars.WithLabelValues(strconv.FormatBool(found)).Inc()
	if !found {
		s.logger.Warn("star for unknown project ignored", slog.Int64("id", id))
	}

	return nil
}

// SeedSamples inserts the demo listings into an empty catalog.
func (s *ProjectService) SeedSamples(ctx context.Context) error {
	seeded, err := s.repo.SeedSampleProjects(ctx)
	if err != nil {
		return fmt.Errorf("seeding sample projects: %w", err)
	}
	if seeded {
		s.logger.Info("seeded sample projects")
	}
	return nil
}

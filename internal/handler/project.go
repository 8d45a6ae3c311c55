package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/openworld/internal/auth"
	"github.com/sakif/openworld/internal/model"
)

const (
	MsgListFailed     = "Error fetching projects"
	MsgCreateFailed   = "Error creating project"
	MsgStarFailed     = "Error starring project"
	MsgInvalidID      = "Invalid project id"
	MsgProjectCreated = "Project created successfully"
	MsgProjectStarred = "Project starred successfully"
)

// Catalog is the part of service.ProjectService the project endpoints use.
type Catalog interface {
	List(ctx context.Context) ([]model.ProjectView, error)
	Create(ctx context.Context, owner *auth.Identity, title, description string, tags []string) (*model.Project, error)
	Star(ctx context.Context, id int64) error
}

// ProjectHandler serves the catalog: listing, creating and starring projects.
type ProjectHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewProjectHandler creates a ProjectHandler backed by the given catalog.
func NewProjectHandler(catalog Catalog, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{catalog: catalog, logger: logger}
}

type createProjectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CreatedResponse is the body of a successful create.
type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// HandleList returns every project, newest first.
//
// HTTP: GET /api/projects
//
// RESPONSE FORMAT:
//
//	[
//	  {"id":2,"user_id":1,"title":"...","description":"...","tags":["ai"],
//	   "stars":42,"created_at":"...","creator_email":"a@b.c","contributors":3},
//	  ...
//	]
//
// An empty catalog is [] and never null.
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, err, MsgListFailed)
		return
	}
	if projects == nil {
		projects = []model.ProjectView{}
	}

	writeJSON(w, http.StatusOK, projects)
}

// HandleCreate adds a project owned by the caller.
//
// HTTP: POST /api/projects
// Auth: Required
// REQUEST BODY: {"title": "...", "description": "...", "tags": ["go"]}
// RESPONSE: 201 {"id": 3, "message": "Project created successfully"}
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid project JSON", slog.String("error", err.Error()))
		writeBadRequest(w, MsgInvalidBody)
		return
	}

	// RequireAuth guarantees an identity here; a nil one is rejected by the service.
	identity, _ := auth.IdentityFromContext(r.Context())

	project, err := h.catalog.Create(r.Context(), identity, req.Title, req.Description, req.Tags)
	if err != nil {
		writeError(w, err, MsgCreateFailed)
		return
	}

	writeJSON(w, http.StatusCreated, CreatedResponse{ID: project.ID, Message: MsgProjectCreated})
}

// HandleStar adds one star to a project.
//
// HTTP: POST /api/projects/{id}/star
// Auth: Required
//
// An id that matches no project still gets a 200.
func (h *ProjectHandler) HandleStar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, MsgInvalidID)
		return
	}

	if err := h.catalog.Star(r.Context(), id); err != nil {
		writeError(w, err, MsgStarFailed)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: MsgProjectStarred})
}

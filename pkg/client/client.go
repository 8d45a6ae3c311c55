// Package client is a small Go client for the OpenWorld HTTP API.
//
//	c := client.New("http://localhost:3000")
//	token, err := c.Login(ctx, "me@example.com", "secret")
//	id, err := c.CreateProject(ctx, token, client.NewProject{Title: "gopher"})
//	err = c.StarProject(ctx, token, id)
//
// Every non-2xx response comes back as an *APIError carrying the server's
// message, so callers can show it to users directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Fallback messages used when an error response has no readable body.
const (
	MsgLoginFailed    = "Login failed"
	MsgRegisterFailed = "Registration failed"
	MsgFetchFailed    = "Failed to fetch projects"
	MsgCreateFailed   = "Failed to create project"
	MsgStarFailed     = "Failed to star project"
)

const defaultTimeout = 10 * time.Second

// Project is one catalog entry as returned by ListProjects.
type Project struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Tags         []string  `json:"tags"`
	Stars        int64     `json:"stars"`
	Contributors int64     `json:"contributors"`
	CreatorEmail string    `json:"creator_email"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewProject is the input to CreateProject.
type NewProject struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openworld: %s (HTTP %d)", e.Message, e.Status)
}

// IsStatus reports whether err is an *APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one OpenWorld server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:3000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/api/register", "", credentials{email, password}, nil, MsgRegisterFailed)
}

// Login returns a bearer token valid for 24 hours.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", credentials{email, password}, &out, MsgLoginFailed); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ListProjects returns the whole catalog, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	projects := []Project{}
	if err := c.do(ctx, http.MethodGet, "/api/projects", "", nil, &projects, MsgFetchFailed); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject adds a project owned by the token's user and returns its id.
func (c *Client) CreateProject(ctx context.Context, token string, p NewProject) (int64, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/projects", token, p, &out, MsgCreateFailed); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// StarProject adds one star to the project with the given id.
func (c *Client) StarProject(ctx context.Context, token string, id int64) error {
	path := "/api/projects/" + strconv.FormatInt(id, 10) + "/star"
	return c.do(ctx, http.MethodPost, path, token, nil, nil, MsgStarFailed)
}

// do sends one request. in and out may be nil. fallback is the APIError
// message when the server's error body cannot be read.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("openworld: encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("openworld: building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openworld: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, fallback)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openworld: decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, fallback string) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: fallback}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}

// Filter returns the projects whose title, description or any tag contains
// query, ignoring case. An empty query returns every project.
func Filter(projects []Project, query string) []Project {
	q := strings.ToLower(query)
	matched := make([]Project, 0, len(projects))
	for _, p := range projects {
		if matches(p, q) {
			matched = append(matched, p)
		}
	}
	return matched
}

func matches(p Project, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

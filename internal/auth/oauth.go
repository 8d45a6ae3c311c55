package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserURL = "https://api.github.com/user"

// GitHubUser is the portion of the GitHub /user API response we care about.
type GitHubUser struct {
	ID    int64  `json:"id"`    // stable numeric account id
	Login string `json:"login"` // username, e.g. "octocat"
	Email string `json:"email"` // empty if hidden in GitHub settings
}

// SignInEmail is the address the catalog account is keyed on. GitHub users
// who hide their email get their stable noreply address instead, so the same
// GitHub account always maps to the same catalog user.
func (u *GitHubUser) SignInEmail() string {
	if u.Email != "" {
		return strings.ToLower(u.Email)
	}
	return fmt.Sprintf("%d+%s@users.noreply.github.com", u.ID, strings.ToLower(u.Login))
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
//  1. AuthURL sends the browser to GitHub with our client id and a state value
//  2. GitHub redirects back with a short-lived code
//  3. Exchange trades the code for an access token (server-to-server, using
//     the client secret) and fetches the user's profile with it
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider creates a GitHubProvider with the given OAuth app
// credentials. callbackURL must match the app's configured callback exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
}

// AuthURL returns the GitHub authorization URL. state must be echoed back on
// the callback; the handler stores it in a cookie to defeat login CSRF.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// GitHub user profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <access token>".
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pages-deployer/apperrors"

	"github.com/google/go-github/v66/github"
)

const (
	lookupTimeout   = 20 * time.Second
	mutationTimeout = 30 * time.Second
	defaultBranch   = "main"
)

// UploadOptions tunes one file upload. Zero values mean branch "main" and message "Add <path>".
type UploadOptions struct {
	Branch  string
	Message string
}

// UploadResult describes the file version written by an upload.
type UploadResult struct {
	Path      string
	SHA       string
	CommitSHA string
	Updated   bool
}

// GitHubGateway talks to the GitHub REST API with a per-call token.
type GitHubGateway struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewGitHubGateway targets apiURL, e.g. "https://api.github.com/".
func NewGitHubGateway(apiURL string) (*GitHubGateway, error) {
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse GitHub API URL: %w", err)
	}
	return &GitHubGateway{baseURL: u, httpClient: &http.Client{}}, nil
}

func (g *GitHubGateway) client(token string) *github.Client {
	c := github.NewClient(g.httpClient).WithAuthToken(token)
	c.BaseURL = g.baseURL
	return c
}

// SplitOwnerRepo splits "owner/name".
func SplitOwnerRepo(ownerRepo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", apperrors.New(apperrors.ErrInvalidInput, fmt.Sprintf("invalid repository %q, want owner/name", ownerRepo))
	}
	return owner, name, nil
}

// ParseRepoURL extracts "owner/name" from a repository URL such as
// https://github.com/owner/name(.git).
func ParseRepoURL(repoURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), true
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func hostingError(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrHosting, op, err)
}

// RepositoryExists reports whether ownerRepo is visible to token. 404 means false.
func (g *GitHubGateway) RepositoryExists(ctx context.Context, ownerRepo, token string) (bool, error) {
	owner, name, err := SplitOwnerRepo(ownerRepo)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	_, resp, err := g.client(token).Repositories.Get(ctx, owner, name)
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, hostingError("check repository "+ownerRepo, err)
	}
	return true, nil
}

// CreateRepository creates a public, auto-initialized repository under org, or under
// the token's account when org is empty, and returns its html URL.
func (g *GitHubGateway) CreateRepository(ctx context.Context, name, token, org string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	repo, _, err := g.client(token).Repositories.Create(ctx, org, &github.Repository{
		Name:     github.String(name),
		Private:  github.Bool(false),
		AutoInit: github.Bool(true),
	})
	if err != nil {
		return "", hostingError("create repository "+name, err)
	}
	return repo.GetHTMLURL(), nil
}

func isConflict(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// UploadFile creates path with content. When the file already exists it fetches the
// current sha and retries once as an update.
func (g *GitHubGateway) UploadFile(ctx context.Context, ownerRepo, path, content, token string, opts UploadOptions) (*UploadResult, error) {
	owner, name, err := SplitOwnerRepo(ownerRepo)
	if err != nil {
		return nil, err
	}
	if opts.Branch == "" {
		opts.Branch = defaultBranch
	}
	if opts.Message == "" {
		opts.Message = "Add " + path
	}
	client := g.client(token)

	fileOpts := &github.RepositoryContentFileOptions{
		Message: github.String(opts.Message),
		Content: []byte(content),
		Branch:  github.String(opts.Branch),
	}

	createCtx, cancel := context.WithTimeout(ctx, mutationTimeout)
	res, resp, err := client.Repositories.CreateFile(createCtx, owner, name, path, fileOpts)
	cancel()
	if err == nil {
		return uploadResult(path, res, false), nil
	}
	if !isConflict(statusOf(resp)) {
		return nil, hostingError("upload "+path, err)
	}

	getCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	current, _, _, getErr := client.Repositories.GetContents(getCtx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: opts.Branch})
	cancel()
	if getErr != nil || current == nil || current.GetSHA() == "" {
		// Nothing to update against; report the create failure.
		return nil, hostingError("upload "+path, err)
	}

	fileOpts.SHA = github.String(current.GetSHA())
	updateCtx, cancel := context.WithTimeout(ctx, mutationTimeout)
	res, _, err = client.Repositories.UpdateFile(updateCtx, owner, name, path, fileOpts)
	cancel()
	if err != nil {
		return nil, hostingError("update "+path, err)
	}
	return uploadResult(path, res, true), nil
}

func uploadResult(path string, res *github.RepositoryContentResponse, updated bool) *UploadResult {
	out := &UploadResult{Path: path, Updated: updated}
	if res == nil {
		return out
	}
	out.SHA = res.Content.GetSHA()
	out.CommitSHA = res.Commit.GetSHA()
	return out
}

// EnableStaticHosting turns on Pages for the main branch root. It returns the HTTP
// status; an error means Pages is not known to be enabled.
func (g *GitHubGateway) EnableStaticHosting(ctx context.Context, ownerRepo, token string) (int, error) {
	owner, name, err := SplitOwnerRepo(ownerRepo)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	_, resp, err := g.client(token).Repositories.EnablePages(ctx, owner, name, &github.Pages{
		Source: &github.PagesSource{
			Branch: github.String(defaultBranch),
			Path:   github.String("/"),
		},
	})
	status := statusOf(resp)
	if err != nil {
		var accepted *github.AcceptedError
		switch {
		case errors.As(err, &accepted):
			return http.StatusAccepted, nil
		case status == http.StatusConflict:
			// already enabled
			return status, nil
		}
		return status, hostingError("enable pages for "+ownerRepo, err)
	}
	return status, nil
}

// ResolveIdentity returns the login that owns token.
func (g *GitHubGateway) ResolveIdentity(ctx context.Context, token string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	user, _, err := g.client(token).Users.Get(ctx, "")
	if err != nil || user.GetLogin() == "" {
		return "", false
	}
	return user.GetLogin(), true
}

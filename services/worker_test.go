package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"pages-deployer/apperrors"
	"pages-deployer/config"
	"pages-deployer/metrics"
	"pages-deployer/models"
	"pages-deployer/stores"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticGenerator struct {
	files FileSet
	panic bool
}

func (g staticGenerator) Generate(context.Context, string, []models.Attachment) FileSet {
	if g.panic {
		panic("generator exploded")
	}
	out := FileSet{}
	for k, v := range g.files {
		out[k] = v
	}
	return out
}

type upload struct {
	ownerRepo, path, content, token string
}

type fakeHosting struct {
	mu          sync.Mutex
	existing    map[string]bool
	login       string
	created     []string
	uploads     []upload
	uploadErr   error
	pagesStatus int
	pagesErr    error
	pagesRepo   string
}

func (h *fakeHosting) RepositoryExists(_ context.Context, ownerRepo, _ string) (bool, error) {
	return h.existing[ownerRepo], nil
}

func (h *fakeHosting) CreateRepository(_ context.Context, name, _ string, _ string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, name)
	return "https://github.com/" + h.login + "/" + name, nil
}

func (h *fakeHosting) UploadFile(_ context.Context, ownerRepo, path, content, token string, _ UploadOptions) (*UploadResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.uploadErr != nil {
		return nil, h.uploadErr
	}
	h.uploads = append(h.uploads, upload{ownerRepo, path, content, token})
	return &UploadResult{Path: path, SHA: "blob", CommitSHA: "commit-" + path}, nil
}

func (h *fakeHosting) EnableStaticHosting(_ context.Context, ownerRepo, _ string) (int, error) {
	h.pagesRepo = ownerRepo
	if h.pagesStatus == 0 {
		return 201, nil
	}
	return h.pagesStatus, h.pagesErr
}

func (h *fakeHosting) ResolveIdentity(context.Context, string) (string, bool) {
	return h.login, h.login != ""
}

type recordingNotifier struct {
	calls  []Notification
	urls   []string
	status int
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, url string, p Notification) (int, error) {
	n.urls = append(n.urls, url)
	n.calls = append(n.calls, p)
	if n.status == 0 {
		return 200, n.err
	}
	return n.status, n.err
}

type recordingWriter struct {
	updates []stores.TerminalUpdate
	ids     []uint
}

func (w *recordingWriter) UpdateTerminal(_ context.Context, id uint, u stores.TerminalUpdate) error {
	w.ids = append(w.ids, id)
	w.updates = append(w.updates, u)
	return nil
}

type workerFixture struct {
	cfg      *config.Config
	gen      staticGenerator
	hosting  *fakeHosting
	notifier *recordingNotifier
	writer   *recordingWriter
	metrics  *metrics.Metrics
}

func newWorkerFixture() *workerFixture {
	return &workerFixture{
		cfg:      &config.Config{GitHubToken: "sys-token", GitHubUsername: "user"},
		gen:      staticGenerator{files: FileSet{"index.html": "<h1>hi</h1>", "README.md": "# hi\n"}},
		hosting:  &fakeHosting{existing: map[string]bool{}, login: "user"},
		notifier: &recordingNotifier{},
		writer:   &recordingWriter{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
}

func (f *workerFixture) run(t *testing.T, req models.DeployRequest) stores.TerminalUpdate {
	t.Helper()
	w := NewWorker(f.cfg, f.gen, f.hosting, f.notifier, f.writer, zap.NewNop(), f.metrics)
	w.Run(context.Background(), Job{DeploymentID: 7, Owner: "a@x.io", Request: req})
	require.Len(t, f.writer.updates, 1)
	require.NotNil(t, f.writer.updates[0].Status)
	return f.writer.updates[0]
}

func TestWorker_SystemRepoSuccess(t *testing.T) {
	f := newWorkerFixture()
	f.cfg.DefaultEvaluationURL = "https://eval.example/notify"

	u := f.run(t, models.DeployRequest{Task: "Landing Page", Round: 1, Nonce: "n", Brief: "b"})

	require.NotNil(t, u.Status)
	assert.Equal(t, models.StatusSuccess, *u.Status)
	assert.Equal(t, "https://github.com/user/Landing-Page", *u.RepoURL)
	assert.Equal(t, "https://user.github.io/Landing-Page/", *u.PagesURL)
	// uploads go in path order; the last commit marks the version
	require.Len(t, f.hosting.uploads, 2)
	assert.Equal(t, "README.md", f.hosting.uploads[0].path)
	assert.Equal(t, "index.html", f.hosting.uploads[1].path)
	assert.Equal(t, "commit-index.html", *u.CommitSHA)
	assert.Equal(t, "sys-token", f.hosting.uploads[0].token)
	assert.Equal(t, "user/Landing-Page", f.hosting.pagesRepo)
	assert.Equal(t, []uint{7}, f.writer.ids)

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, "https://eval.example/notify", f.notifier.urls[0])
	n := f.notifier.calls[0]
	assert.Equal(t, "a@x.io", n.Email)
	assert.Equal(t, "Landing Page", n.Task)
	assert.Equal(t, 1, n.Round)
	assert.Equal(t, u.PagesURL, n.PagesURL)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Deployments.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("ok")))
}

func TestWorker_PagesBaseOverride(t *testing.T) {
	f := newWorkerFixture()
	f.cfg.PagesBaseURL = "https://pages.example.org/"

	u := f.run(t, models.DeployRequest{Task: "site", Nonce: "n"})

	assert.Equal(t, "https://pages.example.org/site/", *u.PagesURL)
}

func TestWorker_SystemOwnerFromIdentity(t *testing.T) {
	f := newWorkerFixture()
	f.cfg.GitHubUsername = ""
	f.hosting.login = "bot"

	u := f.run(t, models.DeployRequest{Task: "site", Nonce: "n"})

	assert.Equal(t, models.StatusSuccess, *u.Status)
	assert.Equal(t, "bot/site", f.hosting.uploads[0].ownerRepo)
	assert.Equal(t, "https://bot.github.io/site/", *u.PagesURL)
}

func TestWorker_AddsReadmeWhenMissing(t *testing.T) {
	f := newWorkerFixture()
	f.gen = staticGenerator{files: FileSet{"index.html": "x"}}

	f.run(t, models.DeployRequest{Task: "T", Brief: "brief", Nonce: "n"})

	require.Len(t, f.hosting.uploads, 2)
	assert.Equal(t, "README.md", f.hosting.uploads[0].path)
	assert.Equal(t, "# T\n\nbrief\n", f.hosting.uploads[0].content)
}

func TestWorker_NoSystemToken(t *testing.T) {
	f := newWorkerFixture()
	f.cfg.GitHubToken = ""

	u := f.run(t, models.DeployRequest{Task: "Landing Page", Nonce: "n"})

	assert.Equal(t, "error: No GitHub token configured for the system account", *u.Status)
	assert.Nil(t, u.RepoURL)
	assert.Nil(t, u.CommitSHA)
	assert.Nil(t, u.PagesURL)
	assert.Empty(t, f.hosting.created)
	assert.Empty(t, f.notifier.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Deployments.WithLabelValues("error")))
}

func TestWorker_ExistingTargetRepo(t *testing.T) {
	f := newWorkerFixture()
	f.hosting.existing["octo/site"] = true

	u := f.run(t, models.DeployRequest{
		Task: "t", Nonce: "n",
		TargetRepo:        "https://github.com/octo/site.git",
		TargetGitHubToken: "caller-token",
	})

	assert.Equal(t, models.StatusSuccess, *u.Status)
	assert.Equal(t, "https://github.com/octo/site.git", *u.RepoURL)
	assert.Equal(t, "https://octo.github.io/site/", *u.PagesURL)
	assert.Empty(t, f.hosting.created)
	assert.Equal(t, "caller-token", f.hosting.uploads[0].token)
	assert.Equal(t, "octo/site", f.hosting.uploads[0].ownerRepo)
}

func TestWorker_MissingTargetRepoIsCreatedUnderTokenOwner(t *testing.T) {
	f := newWorkerFixture()
	f.hosting.login = "me"

	u := f.run(t, models.DeployRequest{Task: "t", Nonce: "n", TargetRepo: "https://github.com/octo/site"})

	assert.Equal(t, models.StatusSuccess, *u.Status)
	assert.Equal(t, []string{"site"}, f.hosting.created)
	assert.Equal(t, "me/site", f.hosting.uploads[0].ownerRepo)
	assert.Equal(t, "sys-token", f.hosting.uploads[0].token)
	assert.Equal(t, "https://github.com/me/site", *u.RepoURL)
	assert.Equal(t, "https://me.github.io/site/", *u.PagesURL)
}

func TestWorker_TargetRepoErrors(t *testing.T) {
	f := newWorkerFixture()
	u := f.run(t, models.DeployRequest{Task: "t", Nonce: "n", TargetRepo: "https://github.com/only-owner"})
	assert.Equal(t, "error: Invalid target_repo URL provided", *u.Status)

	f = newWorkerFixture()
	f.cfg.GitHubToken = ""
	u = f.run(t, models.DeployRequest{Task: "t", Nonce: "n", TargetRepo: "https://github.com/octo/site"})
	assert.Equal(t, "error: No GitHub token available to access target repo", *u.Status)
}

func TestWorker_UploadFailure(t *testing.T) {
	f := newWorkerFixture()
	f.cfg.DefaultEvaluationURL = "https://eval.example/notify"
	f.hosting.uploadErr = apperrors.Wrap(apperrors.ErrHosting, "upload index.html", errors.New("403 Forbidden"))

	u := f.run(t, models.DeployRequest{Task: "t", Nonce: "n"})

	assert.Equal(t, "error: upload index.html: 403 Forbidden", *u.Status)
	assert.Nil(t, u.RepoURL)
	assert.Empty(t, f.notifier.calls)
}

func TestWorker_PagesFailureStillSucceeds(t *testing.T) {
	f := newWorkerFixture()
	f.hosting.pagesStatus = 500
	f.hosting.pagesErr = errors.New("boom")

	u := f.run(t, models.DeployRequest{Task: "t", Nonce: "n"})

	assert.Equal(t, models.StatusSuccess, *u.Status)
	assert.NotNil(t, u.RepoURL)
	assert.NotNil(t, u.CommitSHA)
	assert.Nil(t, u.PagesURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PagesEnable.WithLabelValues("failed")))
}

func TestWorker_Panic(t *testing.T) {
	f := newWorkerFixture()
	f.gen = staticGenerator{panic: true}

	u := f.run(t, models.DeployRequest{Task: "t", Nonce: "n"})

	assert.Equal(t, "error: panic: generator exploded", *u.Status)
}

func TestWorker_NotificationOutcomesDoNotChangeStatus(t *testing.T) {
	for name, n := range map[string]*recordingNotifier{
		"rejected": {status: 500},
		"error":    {err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			f := newWorkerFixture()
			f.notifier = n

			u := f.run(t, models.DeployRequest{Task: "t", Nonce: "n", EvaluationURL: "https://caller.example/cb"})

			assert.Equal(t, models.StatusSuccess, *u.Status)
			require.Len(t, n.urls, 1)
			assert.Equal(t, "https://caller.example/cb", n.urls[0])
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues(name)))
		})
	}
}

func TestRepoNameForTask(t *testing.T) {
	assert.Equal(t, "Landing-Page", RepoNameForTask("Landing Page"))
	long := RepoNameForTask("a b " + strings.Repeat("ü", 200))
	assert.Equal(t, 80, utf8.RuneCountInString(long))
	assert.True(t, strings.HasPrefix(long, "a-b-"))
}

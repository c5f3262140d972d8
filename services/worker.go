package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pages-deployer/apperrors"
	"pages-deployer/config"
	"pages-deployer/metrics"
	"pages-deployer/models"
	"pages-deployer/stores"
	"pages-deployer/utils"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const repoNameMaxRunes = 80

// ContentGenerator produces the files of a site.
type ContentGenerator interface {
	Generate(ctx context.Context, brief string, attachments []models.Attachment) FileSet
}

// HostingGateway is the subset of the hosting provider API the worker drives.
type HostingGateway interface {
	RepositoryExists(ctx context.Context, ownerRepo, token string) (bool, error)
	CreateRepository(ctx context.Context, name, token, org string) (string, error)
	UploadFile(ctx context.Context, ownerRepo, path, content, token string, opts UploadOptions) (*UploadResult, error)
	EnableStaticHosting(ctx context.Context, ownerRepo, token string) (int, error)
	ResolveIdentity(ctx context.Context, token string) (string, bool)
}

// EvaluatorNotifier reports an outcome to an external URL.
type EvaluatorNotifier interface {
	Notify(ctx context.Context, url string, payload Notification) (int, error)
}

// TerminalWriter ends a deployment record.
type TerminalWriter interface {
	UpdateTerminal(ctx context.Context, id uint, u stores.TerminalUpdate) error
}

// Job is one accepted deployment request. DeploymentID is the only link back to the
// caller.
type Job struct {
	DeploymentID uint
	Owner        string
	Request      models.DeployRequest
}

// Outcome is what a successful run produced. Any field may be nil.
type Outcome struct {
	RepoURL   *string
	CommitSHA *string
	PagesURL  *string
}

// Worker runs the deployment workflow for one job:
// generate, resolve repo, upload, enable hosting, notify, record.
type Worker struct {
	cfg       *config.Config
	generator ContentGenerator
	hosting   HostingGateway
	notifier  EvaluatorNotifier
	log       TerminalWriter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewWorker(cfg *config.Config, gen ContentGenerator, hosting HostingGateway, notifier EvaluatorNotifier,
	deployments TerminalWriter, logger *zap.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		cfg:       cfg,
		generator: gen,
		hosting:   hosting,
		notifier:  notifier,
		log:       deployments,
		logger:    logger.Named("worker"),
		metrics:   m,
	}
}

// Run executes the job and writes the terminal status exactly once, whatever happens
// in between (errors and panics included).
func (w *Worker) Run(ctx context.Context, job Job) {
	logger := w.logger.With(zap.Uint("deployment_id", job.DeploymentID), zap.String("run_id", uuid.NewString()))
	logger.Info("deployment started", zap.String("owner", job.Owner), zap.String("task", job.Request.Task))

	var (
		out Outcome
		err error
		pc  panics.Catcher
	)
	pc.Try(func() { out, err = w.deploy(ctx, job, logger) })
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("panic: %v", r.Value)
		logger.Error("deployment panicked", zap.Error(err), zap.ByteString("stack", r.Stack))
	}

	update := stores.Success(out.RepoURL, out.CommitSHA, out.PagesURL)
	outcome := models.StatusSuccess
	if err != nil {
		update = stores.Failure(err)
		outcome = "error"
		logger.Warn("deployment failed", zap.Error(err))
	}
	w.metrics.DeploymentFinished(outcome)

	if uerr := w.log.UpdateTerminal(ctx, job.DeploymentID, update); uerr != nil {
		logger.Error("record terminal status", zap.Error(uerr))
		return
	}
	logger.Info("deployment finished", zap.String("status", *update.Status))
}

// target is the repository the files go to.
type target struct {
	ownerRepo  string
	token      string
	repoURL    string
	pagesBase  string
	systemRepo bool
}

func (w *Worker) deploy(ctx context.Context, job Job, logger *zap.Logger) (Outcome, error) {
	req := job.Request

	files := w.generator.Generate(ctx, req.Brief, req.Attachments)
	if _, ok := files["README.md"]; !ok {
		files["README.md"] = fmt.Sprintf("# %s\n\n%s\n", req.Task, req.Brief)
	}

	tgt, err := w.resolveTarget(ctx, req, logger)
	if err != nil {
		return Outcome{}, err
	}

	commitSHA, err := w.upload(ctx, tgt, files)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{RepoURL: strPtr(tgt.repoURL), CommitSHA: strPtr(commitSHA)}
	out.PagesURL = w.enableHosting(ctx, tgt, logger)

	w.notify(ctx, job, out, logger)
	return out, nil
}

func (w *Worker) resolveTarget(ctx context.Context, req models.DeployRequest, logger *zap.Logger) (target, error) {
	if req.TargetRepo == "" {
		return w.createSystemRepo(ctx, req, logger)
	}

	ownerRepo, ok := ParseRepoURL(req.TargetRepo)
	if !ok {
		return target{}, apperrors.New(apperrors.ErrInvalidInput, "Invalid target_repo URL provided")
	}
	token := req.TargetGitHubToken
	if token == "" {
		token = w.cfg.GitHubToken
	}
	if token == "" {
		return target{}, apperrors.New(apperrors.ErrConfiguration, "No GitHub token available to access target repo")
	}

	exists, err := w.hosting.RepositoryExists(ctx, ownerRepo, token)
	if err != nil {
		return target{}, err
	}
	if exists {
		return target{ownerRepo: ownerRepo, token: token, repoURL: req.TargetRepo}, nil
	}

	// Created under the token's own account; the requested owner only counts for
	// repositories that already exist.
	_, name, _ := SplitOwnerRepo(ownerRepo)
	htmlURL, err := w.hosting.CreateRepository(ctx, name, token, "")
	if err != nil {
		return target{}, err
	}
	if login, ok := w.hosting.ResolveIdentity(ctx, token); ok {
		ownerRepo = login + "/" + name
	} else {
		logger.Warn("could not resolve token owner, keeping requested owner", zap.String("repo", ownerRepo))
	}
	logger.Info("created target repository", zap.String("repo", ownerRepo))
	return target{ownerRepo: ownerRepo, token: token, repoURL: htmlURL}, nil
}

// RepoNameForTask turns a task label into a repository name.
func RepoNameForTask(task string) string {
	return utils.Truncate(strings.ReplaceAll(task, " ", "-"), repoNameMaxRunes)
}

func (w *Worker) createSystemRepo(ctx context.Context, req models.DeployRequest, logger *zap.Logger) (target, error) {
	token := w.cfg.GitHubToken
	if token == "" {
		return target{}, apperrors.New(apperrors.ErrConfiguration, "No GitHub token configured for the system account")
	}
	name := RepoNameForTask(req.Task)

	htmlURL, err := w.hosting.CreateRepository(ctx, name, token, "")
	if err != nil {
		return target{}, err
	}

	owner := w.cfg.GitHubUsername
	pagesBase := w.cfg.SystemPagesBaseURL()
	if owner == "" {
		login, ok := w.hosting.ResolveIdentity(ctx, token)
		if !ok {
			return target{}, apperrors.New(apperrors.ErrConfiguration, "GITHUB_USERNAME is not set and the system token owner could not be resolved")
		}
		owner = login
		if pagesBase == "" {
			pagesBase = "https://" + login + ".github.io"
		}
	}
	logger.Info("created system repository", zap.String("repo", owner+"/"+name))
	return target{ownerRepo: owner + "/" + name, token: token, repoURL: htmlURL, pagesBase: pagesBase, systemRepo: true}, nil
}

func (w *Worker) upload(ctx context.Context, tgt target, files FileSet) (string, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var commitSHA string
	for _, p := range paths {
		res, err := w.hosting.UploadFile(ctx, tgt.ownerRepo, p, files[p], tgt.token, UploadOptions{Message: "Add " + p})
		if err != nil {
			return "", err
		}
		if res != nil && res.CommitSHA != "" {
			commitSHA = res.CommitSHA
		}
	}
	return commitSHA, nil
}

func (w *Worker) enableHosting(ctx context.Context, tgt target, logger *zap.Logger) *string {
	status, err := w.hosting.EnableStaticHosting(ctx, tgt.ownerRepo, tgt.token)
	if err != nil {
		w.metrics.PagesEnabled("failed")
		logger.Warn("enable static hosting failed", zap.Int("status", status), zap.Error(err))
		return nil
	}
	w.metrics.PagesEnabled("ok")
	return strPtr(pagesURL(tgt))
}

// pagesURL is the public URL GitHub Pages serves the repository under.
func pagesURL(tgt target) string {
	owner, name, _ := strings.Cut(tgt.ownerRepo, "/")
	if tgt.systemRepo && tgt.pagesBase != "" {
		return strings.TrimRight(tgt.pagesBase, "/") + "/" + name + "/"
	}
	return "https://" + owner + ".github.io/" + name + "/"
}

func (w *Worker) notify(ctx context.Context, job Job, out Outcome, logger *zap.Logger) {
	url := job.Request.EvaluationURL
	if url == "" {
		url = w.cfg.DefaultEvaluationURL
	}
	if url == "" {
		return
	}

	status, err := w.notifier.Notify(ctx, url, Notification{
		Email:     job.Owner,
		Task:      job.Request.Task,
		Round:     job.Request.Round,
		Nonce:     job.Request.Nonce,
		RepoURL:   out.RepoURL,
		CommitSHA: out.CommitSHA,
		PagesURL:  out.PagesURL,
	})
	switch {
	case err != nil:
		w.metrics.Notified("error")
		logger.Warn("evaluator notification failed", zap.String("url", url), zap.Error(err))
	case status < 200 || status > 299:
		w.metrics.Notified("rejected")
		logger.Warn("evaluator rejected notification", zap.String("url", url), zap.Int("status", status))
	default:
		w.metrics.Notified("ok")
		logger.Info("evaluator notified", zap.Int("status", status))
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

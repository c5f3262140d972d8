package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"pages-deployer/apperrors"
	"pages-deployer/models"

	"go.uber.org/zap"
)

// ProcessingRecorder creates the initial deployment row.
type ProcessingRecorder interface {
	InsertProcessing(ctx context.Context, owner, task string, round int, nonce string, checks []string) (uint, error)
}

// JobRunner executes one job to completion.
type JobRunner interface {
	Run(ctx context.Context, job Job)
}

// TaskSubmitter starts background tasks.
type TaskSubmitter interface {
	Submit(task func()) bool
}

var errShuttingDown = errors.New("server is shutting down")

// Deployments accepts deployment requests and hands them to the worker.
type Deployments struct {
	sharedSecret string
	records      ProcessingRecorder
	runner       JobRunner
	tasks        TaskSubmitter
	log          *zap.Logger
}

func NewDeployments(sharedSecret string, records ProcessingRecorder, runner JobRunner, tasks TaskSubmitter, log *zap.Logger) *Deployments {
	return &Deployments{
		sharedSecret: sharedSecret,
		records:      records,
		runner:       runner,
		tasks:        tasks,
		log:          log.Named("deployments"),
	}
}

// Accept checks the shared secret, records a processing row and starts the worker.
// It returns the row id without waiting for the worker.
func (d *Deployments) Accept(ctx context.Context, owner string, req models.DeployRequest) (uint, error) {
	if d.sharedSecret != "" && subtle.ConstantTimeCompare([]byte(req.Secret), []byte(d.sharedSecret)) != 1 {
		return 0, apperrors.New(apperrors.ErrUnauthorized, "Invalid secret")
	}

	id, err := d.records.InsertProcessing(ctx, owner, req.Task, req.Round, req.Nonce, req.Checks)
	if err != nil {
		return 0, fmt.Errorf("record deployment: %w", err)
	}

	job := Job{DeploymentID: id, Owner: owner, Request: req}
	// The worker outlives the request and cannot be cancelled.
	workerCtx := context.WithoutCancel(ctx)
	if !d.tasks.Submit(func() { d.runner.Run(workerCtx, job) }) {
		return 0, errShuttingDown
	}
	d.log.Info("deployment accepted", zap.Uint("deployment_id", id), zap.String("owner", owner))
	return id, nil
}

package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pages-deployer/apperrors"
	"pages-deployer/models"
	"pages-deployer/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TerminalUpdate is the single write that ends a deployment. Nil fields are not written.
type TerminalUpdate struct {
	Status    *string `json:"status"`
	RepoURL   *string `json:"repo_url"`
	CommitSHA *string `json:"commit_sha"`
	PagesURL  *string `json:"pages_url"`
}

// Success builds the update for a finished deployment.
func Success(repoURL, commitSHA, pagesURL *string) TerminalUpdate {
	status := models.StatusSuccess
	return TerminalUpdate{Status: &status, RepoURL: repoURL, CommitSHA: commitSHA, PagesURL: pagesURL}
}

// Failure builds the update for a failed deployment.
func Failure(err error) TerminalUpdate {
	status := models.ErrorStatus(err.Error())
	return TerminalUpdate{Status: &status}
}

// DeploymentLog records deployment attempts.
type DeploymentLog struct {
	db *gorm.DB
}

func NewDeploymentLog(db *gorm.DB) *DeploymentLog {
	return &DeploymentLog{db: db}
}

// InsertProcessing creates the "processing" row and returns its id.
func (l *DeploymentLog) InsertProcessing(ctx context.Context, owner, task string, round int, nonce string, checks []string) (uint, error) {
	d := models.Deployment{
		Email:  owner,
		Task:   task,
		Round:  round,
		Nonce:  nonce,
		Status: models.StatusProcessing,
	}
	if len(checks) > 0 {
		raw, err := json.Marshal(checks)
		if err != nil {
			return 0, fmt.Errorf("encode checks: %w", err)
		}
		d.Checks = datatypes.JSON(raw)
	}
	if err := l.db.WithContext(ctx).Create(&d).Error; err != nil {
		return 0, fmt.Errorf("insert deployment: %w", err)
	}
	return d.ID, nil
}

// UpdateTerminal applies u to a row that is still processing. A row that already
// reached a terminal state is left alone and reported as not found.
func (l *DeploymentLog) UpdateTerminal(ctx context.Context, id uint, u TerminalUpdate) error {
	if u.Status == nil {
		return apperrors.New(apperrors.ErrInvalidInput, "terminal update without status")
	}
	res := l.db.WithContext(ctx).
		Model(&models.Deployment{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(utils.UpdatesFromPtrDTO(&u, nil))
	if res.Error != nil {
		return fmt.Errorf("update deployment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("deployment %d is not processing", id))
	}
	return nil
}

// ListForOwner returns the owner's deployments, newest first.
func (l *DeploymentLog) ListForOwner(ctx context.Context, owner string) ([]models.Deployment, error) {
	deployments := []models.Deployment{}
	err := l.db.WithContext(ctx).
		Where("email = ?", owner).
		Order("created_at DESC").
		Order("id DESC").
		Find(&deployments).Error
	if err != nil {
		return nil, fmt.Errorf("list deployments for %s: %w", owner, err)
	}
	return deployments, nil
}

// GetForOwner returns one deployment if it belongs to owner.
func (l *DeploymentLog) GetForOwner(ctx context.Context, owner string, id uint) (*models.Deployment, error) {
	var d models.Deployment
	err := l.db.WithContext(ctx).Where("id = ? AND email = ?", id, owner).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "Deployment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %d: %w", id, err)
	}
	return &d, nil
}

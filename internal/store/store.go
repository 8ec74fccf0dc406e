package store

import (
	"context"

	"github.com/joescharf/sp/internal/models"
)

// TaskListFilter specifies filters for listing tasks.
type TaskListFilter struct {
	Status models.TaskStatus
	DueBy  string // inclusive upper bound on deadline, "2006-01-02"
}

// Store defines the persistence interface for sp.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	FindTaskByPrefix(ctx context.Context, prefix string) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskListFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Commitments
	CreateCommitment(ctx context.Context, c *models.Commitment) error
	GetCommitment(ctx context.Context, id string) (*models.Commitment, error)
	ListCommitments(ctx context.Context) ([]*models.Commitment, error)
	UpdateCommitment(ctx context.Context, c *models.Commitment) error
	DeleteCommitment(ctx context.Context, id string) error

	// Plans
	GetPlan(ctx context.Context, date string) (*models.Plan, error)
	ListPlans(ctx context.Context) (map[string]*models.Plan, error)
	SavePlan(ctx context.Context, p *models.Plan) error
	ReplaceAllPlans(ctx context.Context, plans map[string]*models.Plan) error

	// Settings
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, st models.Settings) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

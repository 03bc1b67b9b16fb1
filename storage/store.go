// storage/store.go
package storage

import (
	"context"
	"errors"
	"time"

	"task-staking-system/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the persistence boundary for users and tasks. Implementations must
// be safe for concurrent use.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, address string) (*models.User, error)
	// GetUserForUpdate reads a user and holds it until the surrounding
	// transaction ends.
	GetUserForUpdate(ctx context.Context, address string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	// ResetStreaks zeroes the streak of every listed address that has one and
	// returns how many users changed.
	ResetStreaks(ctx context.Context, addresses []string) (int64, error)

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	GetTaskForUpdate(ctx context.Context, id int64) (*models.Task, error)
	ListTasksByOwner(ctx context.Context, address string) ([]models.Task, error)
	SetTaskProof(ctx context.Context, id int64, proof string) error
	SetTaskVerified(ctx context.Context, id int64, verified bool) error
	SetStakeResult(ctx context.Context, id int64, status models.StakeStatus, txHash *string) error
	// ListLapsedTasks returns unverified tasks whose deadline is in (from, to].
	ListLapsedTasks(ctx context.Context, from, to time.Time) ([]models.Task, error)

	// Transaction runs fn against a store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Close() error
}

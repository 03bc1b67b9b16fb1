// storage/gorm_store.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"task-staking-system/models"
)

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to Postgres and returns a store owning the pool.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return NewGormStore(db), nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SQLDB exposes the underlying pool for migrations.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	return s.db.DB()
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.Badges == nil {
		u.Badges = pq.StringArray{}
	}
	return translate(s.db.WithContext(ctx).Create(u).Error, "create user")
}

func (s *GormStore) GetUser(ctx context.Context, address string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "user_address = ?", address).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &u, nil
}

func (s *GormStore) GetUserForUpdate(ctx context.Context, address string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, "user_address = ?", address).Error
	if err != nil {
		return nil, translate(err, "lock user")
	}
	return &u, nil
}

func (s *GormStore) SaveUser(ctx context.Context, u *models.User) error {
	if u.Badges == nil {
		u.Badges = pq.StringArray{}
	}
	return translate(s.db.WithContext(ctx).Save(u).Error, "save user")
}

func (s *GormStore) ResetStreaks(ctx context.Context, addresses []string) (int64, error) {
	if len(addresses) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("user_address IN ? AND streak > 0", addresses).
		Update("streak", 0)
	if res.Error != nil {
		return 0, translate(res.Error, "reset streaks")
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CreateTask(ctx context.Context, t *models.Task) error {
	return translate(s.db.WithContext(ctx).Create(t).Error, "create task")
}

func (s *GormStore) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get task")
	}
	return &t, nil
}

// GetTaskForUpdate takes a row lock, so concurrent verifications of the same
// task see each other's flag.
func (s *GormStore) GetTaskForUpdate(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "lock task")
	}
	return &t, nil
}

func (s *GormStore) ListTasksByOwner(ctx context.Context, address string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Where("user_address = ?", address).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, translate(err, "list tasks")
	}
	return tasks, nil
}

func (s *GormStore) updateTask(ctx context.Context, id int64, what string, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (s *GormStore) SetTaskProof(ctx context.Context, id int64, proof string) error {
	return s.updateTask(ctx, id, "set task proof", map[string]any{"proof": proof})
}

func (s *GormStore) SetTaskVerified(ctx context.Context, id int64, verified bool) error {
	return s.updateTask(ctx, id, "set task verified", map[string]any{"verified": verified})
}

func (s *GormStore) SetStakeResult(ctx context.Context, id int64, status models.StakeStatus, txHash *string) error {
	return s.updateTask(ctx, id, "set stake result", map[string]any{
		"stake_status":  status,
		"stake_tx_hash": txHash,
	})
}

func (s *GormStore) ListLapsedTasks(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("deadline > ? AND deadline <= ? AND verified = ?", from, to, false).
		Order("deadline ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, translate(err, "list lapsed tasks")
	}
	return tasks, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

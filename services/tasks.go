// services/tasks.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"task-staking-system/blob"
	"task-staking-system/events"
	"task-staking-system/ledger"
	"task-staking-system/metrics"
	"task-staking-system/models"
	"task-staking-system/storage"
)

// TaskDeps wires a TaskService. Ledger may be nil, in which case tasks are
// only recorded off-chain.
type TaskDeps struct {
	Store     storage.Store
	Blobs     blob.Store
	Ledger    ledger.Client
	Publisher events.Publisher
	Badges    *BadgeService
	Metrics   *metrics.Metrics
	Log       *logrus.Entry
}

type TaskService struct {
	store     storage.Store
	blobs     blob.Store
	ledger    ledger.Client
	publisher events.Publisher
	badges    *BadgeService
	metrics   *metrics.Metrics
	log       *logrus.Entry
	validate  *validator.Validate
	now       func() time.Time
}

func NewTaskService(d TaskDeps) *TaskService {
	pub := d.Publisher
	if pub == nil {
		pub = events.Noop{}
	}
	badges := d.Badges
	if badges == nil {
		badges = NewBadgeService(d.Log)
	}
	return &TaskService{
		store:     d.Store,
		blobs:     d.Blobs,
		ledger:    d.Ledger,
		publisher: pub,
		badges:    badges,
		metrics:   d.Metrics,
		log:       d.Log.WithField("component", "tasks"),
		validate:  newValidator(),
		now:       time.Now,
	}
}

type CreateTaskInput struct {
	ID           *int64           `json:"id" validate:"required,gt=0"`
	Title        string           `json:"title" validate:"required,max=255"`
	Description  *string          `json:"description" validate:"omitempty,max=255"`
	Deadline     *time.Time       `json:"deadline"`
	StakedAmount *decimal.Decimal `json:"staked_amount" validate:"required"`
	UserAddress  string           `json:"userAddress" validate:"required,max=255"`
}

// CreateTask records the task and, when a ledger is configured, stakes it
// on-chain. A failed stake leaves the row in place marked stake_failed and
// returns it alongside an ErrExternalService error.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.UserAddress = strings.TrimSpace(in.UserAddress)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.StakedAmount.IsNegative() {
		return nil, invalid("staked_amount must not be negative")
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		in.Description = nil
	}

	if _, err := s.store.GetTask(ctx, *in.ID); err == nil {
		return nil, fmt.Errorf("%w: task %d", ErrConflict, *in.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, external("load task", err)
	}

	status := models.StakeStatusNone
	if s.ledger != nil {
		status = models.StakeStatusPending
	}
	task := &models.Task{
		ID:           *in.ID,
		Title:        in.Title,
		Description:  in.Description,
		Deadline:     in.Deadline,
		StakedAmount: *in.StakedAmount,
		UserAddress:  in.UserAddress,
		StakeStatus:  status,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: task %d", ErrConflict, task.ID)
		}
		return nil, external("create task", err)
	}

	log := s.log.WithFields(logrus.Fields{"task_id": task.ID, "user_address": task.UserAddress})
	log.Info("task created")
	s.publish(ctx, events.Event{Type: events.TypeTaskCreated, TaskID: task.ID, UserAddress: task.UserAddress})

	if s.ledger == nil {
		return task, nil
	}
	return s.stake(ctx, task, log)
}

func (s *TaskService) stake(ctx context.Context, task *models.Task, log *logrus.Entry) (*models.Task, error) {
	receipt, err := s.ledger.CreateTask(ctx, task.ID, task.StakedAmount, task.Deadline)
	if err != nil {
		s.metrics.StakeAttempts.WithLabelValues("failed").Inc()
		log.WithError(err).Error("ledger createTask failed")

		task.StakeStatus = models.StakeStatusFailed
		if serr := s.store.SetStakeResult(context.WithoutCancel(ctx), task.ID, models.StakeStatusFailed, nil); serr != nil {
			log.WithError(serr).Error("could not mark task stake_failed")
		}
		return task, external("ledger createTask", err)
	}

	s.metrics.StakeAttempts.WithLabelValues("staked").Inc()
	hash := receipt.TxHash
	if err := s.store.SetStakeResult(ctx, task.ID, models.StakeStatusStaked, &hash); err != nil {
		return task, external("record stake", err)
	}
	task.StakeStatus = models.StakeStatusStaked
	task.StakeTxHash = &hash
	log.WithFields(logrus.Fields{"tx": hash, "block": receipt.BlockNumber}).Info("task staked")
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, address string) ([]models.Task, error) {
	if strings.TrimSpace(address) == "" {
		return nil, invalid("address is required")
	}
	tasks, err := s.store.ListTasksByOwner(ctx, address)
	if err != nil {
		return nil, external("list tasks", err)
	}
	return tasks, nil
}

// SubmitProof attaches proof to a task owned by submitter, replacing any
// earlier proof.
func (s *TaskService) SubmitProof(ctx context.Context, taskID int64, submitter string, in ProofInput) (*models.Task, *models.ProofRecord, error) {
	if strings.TrimSpace(submitter) == "" {
		return nil, nil, invalid("userAddress is required")
	}
	kind, ok := SelectProof(in)
	if !ok {
		return nil, nil, invalid("no proof provided (proofFile, urlProof or textProof)")
	}
	proofURL := strings.TrimSpace(in.URL)
	if kind == models.ProofKindURL && !validProofURL(proofURL) {
		return nil, nil, invalid("urlProof must be an absolute http(s) URL")
	}

	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: task %d", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, nil, external("load task", err)
	}
	if task.UserAddress != submitter {
		return nil, nil, fmt.Errorf("%w: task %d belongs to another user", ErrForbidden, taskID)
	}
	previous, _ := task.ProofRecord()

	now := s.now()
	var record *models.ProofRecord
	var stored *blob.Object
	switch kind {
	case models.ProofKindFile:
		obj, err := s.blobs.Put(ctx, *in.File)
		switch {
		case errors.Is(err, blob.ErrTooLarge), errors.Is(err, blob.ErrContentType):
			return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
		case err != nil:
			return nil, nil, external("store proof file", err)
		}
		stored = &obj
		record = models.NewFileProof(models.FileProof{
			Filename:     obj.Filename,
			OriginalName: in.File.OriginalName,
			Path:         obj.Path,
			MimeType:     obj.ContentType,
			Size:         obj.Size,
		}, now)
	case models.ProofKindURL:
		record = models.NewURLProof(proofURL, now)
	default:
		record = models.NewTextProof(in.Text, now)
	}

	log := s.log.WithFields(logrus.Fields{"task_id": taskID, "proof_type": kind})

	encoded, err := record.Encode()
	if err == nil {
		err = s.store.SetTaskProof(ctx, taskID, encoded)
	}
	if err != nil {
		if stored != nil {
			s.discardBlob(ctx, stored.Filename, log)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: task %d", ErrNotFound, taskID)
		}
		return nil, nil, external("save proof", err)
	}

	if previous != nil && previous.Kind == models.ProofKindFile && (stored == nil || previous.File.Filename != stored.Filename) {
		s.discardBlob(ctx, previous.File.Filename, log)
	}

	task.Proof = &encoded
	s.metrics.ProofsSubmitted.WithLabelValues(string(kind)).Inc()
	log.Info("proof submitted")
	s.publish(ctx, events.Event{
		Type:        events.TypeProofSubmitted,
		TaskID:      taskID,
		UserAddress: task.UserAddress,
		ProofType:   string(kind),
	})
	return task, record, nil
}

// discardBlob deletes a blob that no task references anymore. Failures are
// logged and counted only.
func (s *TaskService) discardBlob(ctx context.Context, filename string, log *logrus.Entry) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), filename); err != nil {
		s.metrics.BlobCleanups.WithLabelValues("failed").Inc()
		log.WithError(err).WithField("filename", filename).Warn("blob cleanup failed")
		return
	}
	s.metrics.BlobCleanups.WithLabelValues("deleted").Inc()
	log.WithField("filename", filename).Debug("blob removed")
}

// VerifyTask sets the verified flag. Flipping it also moves the owner's
// streak and total_spent; both are floored at zero.
func (s *TaskService) VerifyTask(ctx context.Context, taskID int64, verified *bool) (*models.Task, error) {
	if verified == nil {
		return nil, invalid("verified must be a boolean")
	}

	var task *models.Task
	err := s.store.Transaction(ctx, func(tx storage.Store) error {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		changed := t.Verified != *verified
		if err := tx.SetTaskVerified(ctx, taskID, *verified); err != nil {
			return err
		}
		t.Verified = *verified
		task = t

		if !changed {
			return nil
		}
		return s.applyVerification(ctx, tx, t)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: task %d", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, external("verify task", err)
	}

	s.log.WithFields(logrus.Fields{"task_id": taskID, "verified": *verified}).Info("task verification updated")
	s.publish(ctx, events.Event{
		Type:        events.TypeTaskVerified,
		TaskID:      taskID,
		UserAddress: task.UserAddress,
		Verified:    verified,
	})
	return task, nil
}

func (s *TaskService) applyVerification(ctx context.Context, tx storage.Store, t *models.Task) error {
	u, err := tx.GetUserForUpdate(ctx, t.UserAddress)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if t.Verified {
		u.Streak++
		u.TotalSpent = u.TotalSpent.Add(t.StakedAmount)
		s.badges.AutoAwardBadges(u)
	} else {
		u.Streak = max(u.Streak-1, 0)
		u.TotalSpent = decimal.Max(u.TotalSpent.Sub(t.StakedAmount), decimal.Zero)
	}
	return tx.SaveUser(ctx, u)
}

func (s *TaskService) publish(ctx context.Context, e events.Event) {
	e.At = s.now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Warn("event publish failed")
	}
}

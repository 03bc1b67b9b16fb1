// storage/memory_store.go
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"task-staking-system/models"
)

// MemoryStore keeps users and tasks in process memory. It backs
// STORE_DRIVER=memory and the service tests. Transactions are serialized and
// roll back only the rows they wrote.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users      map[string]models.User
	tasks      map[int64]models.Task
	taskSeq    map[int64]int64
	nextUserID int64
	nextSeq    int64

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]models.User),
		tasks:   make(map[int64]models.Task),
		taskSeq: make(map[int64]int64),
		now:     time.Now,
	}
}

func copyUser(u models.User) *models.User {
	u.Badges = append(pq.StringArray{}, u.Badges...)
	return &u
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.UserAddress]; ok {
		return fmt.Errorf("create user: %w", ErrDuplicate)
	}
	s.nextUserID++
	now := s.now()
	u.ID = s.nextUserID
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Badges == nil {
		u.Badges = pq.StringArray{}
	}
	s.users[u.UserAddress] = *copyUser(*u)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, address string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[address]
	if !ok {
		return nil, fmt.Errorf("get user: %w", ErrNotFound)
	}
	return copyUser(u), nil
}

// GetUserForUpdate is GetUser; transactions already run one at a time.
func (s *MemoryStore) GetUserForUpdate(ctx context.Context, address string) (*models.User, error) {
	return s.GetUser(ctx, address)
}

func (s *MemoryStore) SaveUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.UserAddress]; !ok {
		return fmt.Errorf("save user: %w", ErrNotFound)
	}
	u.UpdatedAt = s.now()
	s.users[u.UserAddress] = *copyUser(*u)
	return nil
}

func (s *MemoryStore) ResetStreaks(_ context.Context, addresses []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, addr := range addresses {
		u, ok := s.users[addr]
		if !ok || u.Streak == 0 {
			continue
		}
		u.Streak = 0
		u.UpdatedAt = s.now()
		s.users[addr] = u
		n++
	}
	return n, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("create task: %w", ErrDuplicate)
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.StakeStatus == "" {
		t.StakeStatus = models.StakeStatusNone
	}
	s.nextSeq++
	s.tasks[t.ID] = *t
	s.taskSeq[t.ID] = s.nextSeq
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task: %w", ErrNotFound)
	}
	return &t, nil
}

func (s *MemoryStore) GetTaskForUpdate(ctx context.Context, id int64) (*models.Task, error) {
	return s.GetTask(ctx, id)
}

func (s *MemoryStore) ListTasksByOwner(_ context.Context, address string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.UserAddress == address {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return s.taskSeq[tasks[i].ID] < s.taskSeq[tasks[j].ID]
	})
	return tasks, nil
}

func (s *MemoryStore) updateTask(id int64, what string, fn func(t *models.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	fn(&t)
	t.UpdatedAt = s.now()
	s.tasks[id] = t
	return nil
}

func (s *MemoryStore) SetTaskProof(_ context.Context, id int64, proof string) error {
	return s.updateTask(id, "set task proof", func(t *models.Task) { t.Proof = &proof })
}

func (s *MemoryStore) SetTaskVerified(_ context.Context, id int64, verified bool) error {
	return s.updateTask(id, "set task verified", func(t *models.Task) { t.Verified = verified })
}

func (s *MemoryStore) SetStakeResult(_ context.Context, id int64, status models.StakeStatus, txHash *string) error {
	return s.updateTask(id, "set stake result", func(t *models.Task) {
		t.StakeStatus = status
		t.StakeTxHash = txHash
	})
}

func (s *MemoryStore) ListLapsedTasks(_ context.Context, from, to time.Time) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []models.Task
	for _, t := range s.tasks {
		if t.Verified || t.Deadline == nil {
			continue
		}
		if t.Deadline.After(from) && !t.Deadline.After(to) {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Deadline.Before(*tasks[j].Deadline) })
	return tasks, nil
}

func (s *MemoryStore) Transaction(_ context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{
		MemoryStore: s,
		users:       make(map[string]*models.User),
		tasks:       make(map[int64]*models.Task),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx records the prior value of each row the first time the
// transaction writes it. A nil entry means the row did not exist.
type memoryTx struct {
	*MemoryStore
	users map[string]*models.User
	tasks map[int64]*models.Task
}

func (tx *memoryTx) rememberUser(address string) {
	if _, ok := tx.users[address]; ok {
		return
	}
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	if u, ok := tx.MemoryStore.users[address]; ok {
		tx.users[address] = copyUser(u)
	} else {
		tx.users[address] = nil
	}
}

func (tx *memoryTx) rememberTask(id int64) {
	if _, ok := tx.tasks[id]; ok {
		return
	}
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	if t, ok := tx.MemoryStore.tasks[id]; ok {
		tx.tasks[id] = &t
	} else {
		tx.tasks[id] = nil
	}
}

func (tx *memoryTx) rollback() {
	s := tx.MemoryStore
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, u := range tx.users {
		if u == nil {
			delete(s.users, addr)
			continue
		}
		s.users[addr] = *u
	}
	for id, t := range tx.tasks {
		if t == nil {
			delete(s.tasks, id)
			delete(s.taskSeq, id)
			continue
		}
		s.tasks[id] = *t
	}
}

func (tx *memoryTx) CreateUser(ctx context.Context, u *models.User) error {
	tx.rememberUser(u.UserAddress)
	return tx.MemoryStore.CreateUser(ctx, u)
}

func (tx *memoryTx) SaveUser(ctx context.Context, u *models.User) error {
	tx.rememberUser(u.UserAddress)
	return tx.MemoryStore.SaveUser(ctx, u)
}

func (tx *memoryTx) ResetStreaks(ctx context.Context, addresses []string) (int64, error) {
	for _, addr := range addresses {
		tx.rememberUser(addr)
	}
	return tx.MemoryStore.ResetStreaks(ctx, addresses)
}

func (tx *memoryTx) CreateTask(ctx context.Context, t *models.Task) error {
	tx.rememberTask(t.ID)
	return tx.MemoryStore.CreateTask(ctx, t)
}

func (tx *memoryTx) SetTaskProof(ctx context.Context, id int64, proof string) error {
	tx.rememberTask(id)
	return tx.MemoryStore.SetTaskProof(ctx, id, proof)
}

func (tx *memoryTx) SetTaskVerified(ctx context.Context, id int64, verified bool) error {
	tx.rememberTask(id)
	return tx.MemoryStore.SetTaskVerified(ctx, id, verified)
}

func (tx *memoryTx) SetStakeResult(ctx context.Context, id int64, status models.StakeStatus, txHash *string) error {
	tx.rememberTask(id)
	return tx.MemoryStore.SetStakeResult(ctx, id, status, txHash)
}

// Transaction joins the enclosing transaction.
func (tx *memoryTx) Transaction(_ context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

func (s *MemoryStore) Close() error { return nil }


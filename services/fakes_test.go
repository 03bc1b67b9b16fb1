package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"task-staking-system/blob"
	"task-staking-system/events"
	"task-staking-system/ledger"
	"task-staking-system/logger"
	"task-staking-system/metrics"
	"task-staking-system/storage"
)

type memBlobs struct {
	mu      sync.Mutex
	files   map[string][]byte
	seq     int
	putErr  error
	delErr  error
	deleted []string
}

func newMemBlobs() *memBlobs { return &memBlobs{files: map[string][]byte{}} }

func (b *memBlobs) Put(_ context.Context, u blob.Upload) (blob.Object, error) {
	if b.putErr != nil {
		return blob.Object{}, b.putErr
	}
	ct, err := blob.Check(u, blob.DefaultMaxBytes)
	if err != nil {
		return blob.Object{}, err
	}
	rc, err := u.Open()
	if err != nil {
		return blob.Object{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return blob.Object{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	name := fmt.Sprintf("blob-%d", b.seq)
	b.files[name] = data
	return blob.Object{Filename: name, Path: "uploads/" + name, ContentType: ct, Size: int64(len(data))}, nil
}

func (b *memBlobs) Get(_ context.Context, name string) (*blob.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[name]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return &blob.Reader{ReadCloser: io.NopCloser(strings.NewReader(string(data))), Size: int64(len(data))}, nil
}

func (b *memBlobs) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, name)
	if b.delErr != nil {
		return b.delErr
	}
	if _, ok := b.files[name]; !ok {
		return blob.ErrNotFound
	}
	delete(b.files, name)
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

type fakeLedger struct {
	err   error
	calls []int64
}

func (l *fakeLedger) CreateTask(_ context.Context, taskID int64, stake decimal.Decimal, _ *time.Time) (*ledger.Receipt, error) {
	l.calls = append(l.calls, taskID)
	if l.err != nil {
		return nil, l.err
	}
	if _, err := ledger.ToWei(stake); err != nil {
		return nil, err
	}
	return &ledger.Receipt{TxHash: fmt.Sprintf("0x%064x", taskID), BlockNumber: 1}, nil
}

func (l *fakeLedger) Close() {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// failingProofStore loses every proof write.
type failingProofStore struct {
	storage.Store
}

func (failingProofStore) SetTaskProof(context.Context, int64, string) error {
	return errors.New("connection reset")
}

type fixture struct {
	store  *storage.MemoryStore
	blobs  *memBlobs
	pub    *recordingPublisher
	users  *UserService
	tasks  *TaskService
	ledger *fakeLedger
}

type fixtureOpt func(*TaskDeps)

func withLedger(l *fakeLedger) fixtureOpt {
	return func(d *TaskDeps) { d.Ledger = l }
}

func withStore(wrap func(storage.Store) storage.Store) fixtureOpt {
	return func(d *TaskDeps) { d.Store = wrap(d.Store) }
}

func newFixture(opts ...fixtureOpt) *fixture {
	log := logger.Discard()
	f := &fixture{
		store: storage.NewMemoryStore(),
		blobs: newMemBlobs(),
		pub:   &recordingPublisher{},
	}
	deps := TaskDeps{
		Store:     f.store,
		Blobs:     f.blobs,
		Publisher: f.pub,
		Metrics:   metrics.New(),
		Log:       log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	if l, ok := deps.Ledger.(*fakeLedger); ok {
		f.ledger = l
	}
	f.users = NewUserService(f.store, log)
	f.tasks = NewTaskService(deps)
	return f
}

func textUpload(name, contentType, body string) *blob.Upload {
	return &blob.Upload{
		OriginalName: name,
		ContentType:  contentType,
		Size:         int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func ptr[T any](v T) *T { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

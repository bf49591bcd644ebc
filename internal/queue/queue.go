// Package queue implements a sequential, single-worker job queue, adapted
// from the teacher's engine.QueueManager state machine but simplified: no
// database-backed resume after restart (an explicit spec non-goal), just
// in-memory bookkeeping and cancellation.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"
)

// Status is a job's position in the state machine.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Item is one queued NZB job.
type Item struct {
	ID       string
	NzbPath  string
	OutDir   string
	Status   Status
	Error    string
}

// RunFunc performs the actual download+post-process work for an Item. It
// must honor ctx cancellation.
type RunFunc func(ctx context.Context, item *Item) error

// Manager runs queued items one at a time, mirroring spec.md's single
// concurrently-active NZB design (the NZB scheduler already fans out
// within one job; the queue only prevents two jobs competing for the same
// connection pool at once).
type Manager struct {
	mu      sync.RWMutex
	items   map[string]*Item
	order   []string
	run     RunFunc
	cancels map[string]context.CancelFunc

	newJob chan struct{}
}

// New builds a Manager that executes queued jobs with run.
func New(run RunFunc) *Manager {
	return &Manager{
		items:   make(map[string]*Item),
		cancels: make(map[string]context.CancelFunc),
		run:     run,
		newJob:  make(chan struct{}, 1),
	}
}

// Enqueue adds a new pending item and returns its generated ID.
func (m *Manager) Enqueue(nzbPath, outDir string) string {
	id := ksuid.New().String()
	item := &Item{ID: id, NzbPath: nzbPath, OutDir: outDir, Status: StatusPending}

	m.mu.Lock()
	m.items[id] = item
	m.order = append(m.order, id)
	m.mu.Unlock()

	select {
	case m.newJob <- struct{}{}:
	default:
	}
	return id
}

// Get returns a copy of an item's current state.
func (m *Manager) Get(id string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Cancel requests cancellation of a running or pending job.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
	}
	if it, ok := m.items[id]; ok && it.Status == StatusPending {
		it.Status = StatusCancelled
	}
}

// Run drains the queue sequentially until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		id, ok := m.nextPending()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.newJob:
				continue
			}
		}
		m.runOne(ctx, id)
	}
}

func (m *Manager) nextPending() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if it := m.items[id]; it.Status == StatusPending {
			return id, true
		}
	}
	return "", false
}

func (m *Manager) runOne(ctx context.Context, id string) {
	jobCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	item := m.items[id]
	item.Status = StatusDownloading
	m.cancels[id] = cancel
	m.mu.Unlock()

	err := m.run(jobCtx, item)

	m.mu.Lock()
	delete(m.cancels, id)
	if err != nil {
		item.Status = StatusFailed
		item.Error = fmt.Sprintf("%v", err)
	} else if item.Status != StatusCancelled {
		item.Status = StatusCompleted
	}
	m.mu.Unlock()
	cancel()
}

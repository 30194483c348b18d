package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/draftdeck/storefront/app/repository"
	"github.com/draftdeck/storefront/internal/pkg/env"
)

const (
	defaultWorkerCount         = 5
	defaultLedgerRetentionDays = 90
	defaultLedgerPruneInterval = 24 * time.Hour
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue       *Queue
	pruneTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := defaultWorkerCount
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Start the webhook ledger pruner. The worker gets its own references
	// because Stop clears the fields while it may still be mid-prune.
	m.pruneTicker = time.NewTicker(defaultLedgerPruneInterval)
	m.wg.Add(1)
	go m.pruneWorker(m.stopCh, m.pruneTicker)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.pruneTicker != nil {
		m.pruneTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// pruneWorker periodically deletes processed webhook ledger rows older than
// the retention window. The payload of a pruned row is gone for good, so
// manual replay is only possible inside the window.
func (m *Manager) pruneWorker(stopCh <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()

	retentionDays := ledgerRetentionDays()
	log.Infof("[JobQueue Manager] Started ledger prune worker (retention: %d days)", retentionDays)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Ledger prune worker stopping")
			return
		case <-ticker.C:
			if err := m.pruneLedgerOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Ledger prune error: %v", err)
			}
		}
	}
}

func (m *Manager) pruneLedgerOnce() error {
	pruned, err := repository.GetWebhookEventRepository().PruneOlderThan(ledgerRetentionDays())
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Infof("[JobQueue Manager] Pruned %d webhook ledger entries", pruned)
	}
	return nil
}

// RunLedgerPruneOnce exposes a manual trigger for a single prune pass (admin use).
func (m *Manager) RunLedgerPruneOnce() error {
	return m.pruneLedgerOnce()
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func ledgerRetentionDays() int {
	if v, err := strconv.Atoi(env.GetEnv("WEBHOOK_LEDGER_RETENTION_DAYS", "")); err == nil && v > 0 {
		return v
	}
	return defaultLedgerRetentionDays
}

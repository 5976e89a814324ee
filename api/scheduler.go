/*
scheduler.go - Overdue sweep scheduler

PURPOSE:
  Periodically recomputes every tenant's rent summary and logs the ones
  that have fallen overdue since the last sweep. The sweep is read-only:
  overdue status is derived, never stored, so the sweep writes nothing.
  Its output feeds operational alerting and the portal's notification
  pipeline.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Evaluates each tenant at the sweep's wall-clock date
  - Remembers overdue counts between sweeps so only transitions are logged
  - Skips tenants without an active lease

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweep := NewOverdueSweeper(store)
  sweep.Start()
  // ... later
  sweep.Stop()

SEE ALSO:
  - handlers.go: GetRentSummary (on-demand evaluation)
  - billing/summary.go: Summarize
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lodgeline/rent-engine/billing"
)

// OverdueSweeper periodically surfaces tenants whose rent went overdue.
type OverdueSweeper struct {
	Store         billing.Store
	CheckInterval time.Duration
	Enabled       bool

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// sweepMu serializes sweeps: the ticker goroutine and RunNow both
	// read and write lastOverdue. It must stay separate from mu, which
	// Stop holds while waiting for the ticker goroutine.
	sweepMu sync.Mutex

	// lastOverdue holds each tenant's overdue count from the previous
	// sweep, so a tenant is reported once per transition, not every hour.
	lastOverdue map[billing.TenantID]int
}

// NewOverdueSweeper creates a new sweeper.
func NewOverdueSweeper(store billing.Store) *OverdueSweeper {
	return &OverdueSweeper{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan bool),
		lastOverdue:   make(map[billing.TenantID]int),
	}
}

// Start begins the sweeper.
func (s *OverdueSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Sweep] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Sweep] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the sweeper.
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Sweep] Stopped")
	}
}

func (s *OverdueSweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *OverdueSweeper) sweep() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	ctx := context.Background()
	asOf := billing.DateOnly(s.Now())

	tenants, err := s.Store.ListTenants(ctx)
	if err != nil {
		log.Printf("[Sweep] Error listing tenants: %v", err)
		return
	}

	newlyOverdue := 0
	expiring := 0

	for _, tenant := range tenants {
		summary, err := s.evaluate(ctx, tenant.ID, asOf)
		if err != nil {
			log.Printf("[Sweep] Error evaluating tenant %s: %v", tenant.ID, err)
			continue
		}
		if !summary.HasActiveLease {
			delete(s.lastOverdue, tenant.ID)
			continue
		}

		previous := s.lastOverdue[tenant.ID]
		if summary.OverdueCount > previous {
			newlyOverdue++
			log.Printf("[Sweep] Tenant %s is overdue: %d period(s), %s total",
				tenant.ID, summary.OverdueCount, summary.TotalOverdueAmount.StringFixed(2))
		}
		s.lastOverdue[tenant.ID] = summary.OverdueCount

		if summary.IsLeaseExpiringSoon {
			expiring++
		}
	}

	if newlyOverdue > 0 || expiring > 0 {
		log.Printf("[Sweep] Completed: %d newly overdue, %d lease(s) expiring soon", newlyOverdue, expiring)
	}
}

func (s *OverdueSweeper) evaluate(ctx context.Context, tenantID billing.TenantID, asOf time.Time) (billing.RentSummary, error) {
	lease, err := s.Store.LeaseByTenant(ctx, tenantID)
	if err != nil {
		return billing.RentSummary{}, err
	}
	payments, err := s.Store.PaymentsByTenant(ctx, tenantID)
	if err != nil {
		return billing.RentSummary{}, err
	}
	return billing.Summarize(lease, payments, asOf)
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *OverdueSweeper) RunNow() {
	s.sweep()
}

/*
scheduler_test.go - Overdue sweep lifecycle and concurrency tests
*/
package api_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lodgeline/rent-engine/api"
	"github.com/lodgeline/rent-engine/billing"
	"github.com/lodgeline/rent-engine/billing/store"
)

func sweeperStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveTenant(ctx, billing.Tenant{ID: "t1", Name: "Test Tenant"}))
	require.NoError(t, mem.SaveLease(ctx, billing.LeaseAgreement{
		ID:          "t1-lease",
		TenantID:    "t1",
		Start:       billing.Date(2023, time.December, 1),
		MonthlyRent: billing.Dollars(500),
		Deposit:     billing.ZeroMoney(),
	}))
	return mem
}

func TestOverdueSweeper_ConcurrentRunNow(t *testing.T) {
	// GIVEN: A sweeper over a store with an overdue tenant
	// WHEN: Several manual sweeps race each other
	// THEN: Sweeps serialize instead of mutating the transition state
	//       concurrently

	sweep := api.NewOverdueSweeper(sweeperStore(t))
	sweep.Now = func() time.Time { return billing.Date(2024, time.February, 10) }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep.RunNow()
		}()
	}
	wg.Wait()
}

func TestOverdueSweeper_RunNowSafeWhileTickerRuns(t *testing.T) {
	sweep := api.NewOverdueSweeper(sweeperStore(t))
	sweep.CheckInterval = time.Hour
	sweep.Now = func() time.Time { return billing.Date(2024, time.February, 10) }

	sweep.Start()
	sweep.RunNow()
	sweep.Stop()
}

func TestOverdueSweeper_DisabledDoesNotStart(t *testing.T) {
	sweep := api.NewOverdueSweeper(store.NewMemory())
	sweep.Enabled = false

	sweep.Start()
	sweep.Stop()
}

package usecase

import (
	"slices"
	"sync"
	"time"

	"tenant-portal/internal/realtime/domain/model"
)

// DashboardCache keeps the latest super-admin dashboard update so views opened
// later can render without waiting for the next push.
type DashboardCache struct {
	mu        sync.RWMutex
	latest    *model.SuperAdminDashboardUpdate
	updatedAt time.Time
	now       func() time.Time
}

// NewDashboardCache creates an empty cache
func NewDashboardCache() *DashboardCache {
	return &DashboardCache{now: time.Now}
}

// Observe implements Observer
func (d *DashboardCache) Observe(msg model.Message) {
	update, ok := msg.(*model.SuperAdminDashboardUpdate)
	if !ok {
		return
	}
	cp := cloneDashboard(update)
	d.mu.Lock()
	d.latest = cp
	d.updatedAt = d.now()
	d.mu.Unlock()
}

// Latest returns the last update and when it arrived, ok is false before the first one
func (d *DashboardCache) Latest() (update model.SuperAdminDashboardUpdate, at time.Time, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return model.SuperAdminDashboardUpdate{}, time.Time{}, false
	}
	return *cloneDashboard(d.latest), d.updatedAt, true
}

// Reset drops the cached update, used when the session is cleared
func (d *DashboardCache) Reset() {
	d.mu.Lock()
	d.latest = nil
	d.updatedAt = time.Time{}
	d.mu.Unlock()
}

// cloneDashboard copies the update including its slices, so neither the
// dispatched message nor a caller of Latest shares backing arrays with the cache
func cloneDashboard(update *model.SuperAdminDashboardUpdate) *model.SuperAdminDashboardUpdate {
	cp := *update
	cp.RecentActivities = slices.Clone(update.RecentActivities)
	cp.MonthlyRevenue = slices.Clone(update.MonthlyRevenue)
	return &cp
}

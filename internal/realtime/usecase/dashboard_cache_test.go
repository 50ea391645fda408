package usecase

import (
	"testing"

	"tenant-portal/internal/realtime/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardCache_LatestDoesNotShareSlices(t *testing.T) {
	cache := NewDashboardCache()
	update := &model.SuperAdminDashboardUpdate{
		TotalCompanies:   3,
		RecentActivities: []model.RecentActivity{{ID: 1, Description: "Acme registered"}},
		MonthlyRevenue:   []model.MonthlyRevenue{{Month: "01", Year: "2024", TotalRevenue: 100}},
	}
	cache.Observe(update)

	update.RecentActivities[0].Description = "changed by dispatcher"
	update.MonthlyRevenue[0].TotalRevenue = 0

	first, _, ok := cache.Latest()
	require.True(t, ok)
	assert.Equal(t, "Acme registered", first.RecentActivities[0].Description)
	assert.Equal(t, 100.0, first.MonthlyRevenue[0].TotalRevenue)

	first.RecentActivities[0].Description = "changed by caller"
	first.MonthlyRevenue[0].TotalRevenue = 1

	second, _, _ := cache.Latest()
	assert.Equal(t, "Acme registered", second.RecentActivities[0].Description)
	assert.Equal(t, 100.0, second.MonthlyRevenue[0].TotalRevenue)
}

func TestDashboardCache_IgnoresOtherMessagesAndResets(t *testing.T) {
	cache := NewDashboardCache()
	cache.Observe(&model.BroadcastNotice{ID: 1})
	_, _, ok := cache.Latest()
	assert.False(t, ok)

	cache.Observe(&model.SuperAdminDashboardUpdate{TotalCompanies: 1})
	_, at, ok := cache.Latest()
	require.True(t, ok)
	assert.False(t, at.IsZero())

	cache.Reset()
	_, _, ok = cache.Latest()
	assert.False(t, ok)
}

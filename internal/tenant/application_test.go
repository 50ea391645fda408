package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_Select(t *testing.T) {
	s := NewSelector(NewResolver())

	tests := []struct {
		host    string
		want    ApplicationName
		wantSub string
	}{
		{"admin.example.com", ApplicationAdmin, "admin"},
		{"superadmin.example.com", ApplicationSuperAdmin, "superadmin"},
		{"employee.example.com", ApplicationEmployee, "employee"},
		{"acme.example.com", ApplicationMain, "acme"},
		{"www.example.com", ApplicationMain, ""},
		{"localhost", ApplicationMain, ""},
		{"ADMIN.example.com", ApplicationAdmin, "ADMIN"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			app, sub := s.Select(tt.host)
			assert.Equal(t, tt.want, app.Name)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestApplications_RealtimePaths(t *testing.T) {
	admin, ok := Lookup(ApplicationAdmin)
	require.True(t, ok)
	assert.Equal(t, "/ws/dashboard", admin.RealtimePath)
	assert.True(t, admin.UsesRealtime())

	super, _ := Lookup(ApplicationSuperAdmin)
	assert.Equal(t, "/ws/superadmin-dashboard", super.RealtimePath)
	assert.Equal(t, RoleSuperAdmin, super.RequiredRole)
	assert.Equal(t, "/auth", super.LoginPath)

	main, _ := Lookup(ApplicationMain)
	assert.False(t, main.UsesRealtime())
	assert.False(t, main.RequiresAuth())

	_, ok = Lookup("billing")
	assert.False(t, ok)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleSuperAdmin, NormalizeRole("superadmin"))
	assert.Equal(t, RoleSuperAdmin, NormalizeRole("super_admin"))
	assert.Equal(t, RoleSuperAdmin, NormalizeRole("Super-Admin"))
	assert.Equal(t, RoleAdmin, NormalizeRole("admin"))
	assert.Equal(t, RoleEmployee, NormalizeRole(" Employee "))
	assert.Equal(t, "auditor", NormalizeRole("auditor"))
}

package model

import (
	"testing"

	apperrors "tenant-portal/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KnownKinds(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"broadcast_message","payload":{"id":3,"message":"Office closed","created_at":"2026-10-01T08:00:00Z","expire_date":null,"is_read":false}}`))
	require.NoError(t, err)
	notice, ok := msg.(*BroadcastNotice)
	require.True(t, ok)
	assert.Equal(t, int64(3), notice.ID)
	assert.Equal(t, "Office closed", notice.Message)
	assert.Nil(t, notice.ExpireDate)
	assert.Equal(t, TypeBroadcastMessage, notice.Type())

	msg, err = Decode([]byte(`{"type":"superadmin_dashboard_update","payload":{"total_companies":12,"active_subscriptions":7,"trial_subscriptions":3,"recent_activities":[{"id":1,"description":"Acme registered","timestamp":1760000000000}],"monthly_revenue":[{"month":"2026-09","year":"2026","total_revenue":1500.5}]}}`))
	require.NoError(t, err)
	dash, ok := msg.(*SuperAdminDashboardUpdate)
	require.True(t, ok)
	assert.Equal(t, int64(12), dash.TotalCompanies)
	require.Len(t, dash.RecentActivities, 1)
	assert.Equal(t, int64(1760000000), dash.RecentActivities[0].At().Unix())
	assert.Equal(t, 1500.5, dash.MonthlyRevenue[0].TotalRevenue)

	msg, err = Decode([]byte(`{"type":"superadmin_notification","payload":{"type":"new_company","message":"Acme joined","company_id":9,"company_name":"Acme"}}`))
	require.NoError(t, err)
	note, ok := msg.(*SuperAdminNotification)
	require.True(t, ok)
	assert.Equal(t, "new_company", note.Kind)
	assert.Equal(t, TypeSuperAdminNotification, note.Type())
}

func TestDecode_UnknownKeepsEnvelope(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"attendance_update","payload":{"employee":1}}`))
	require.NoError(t, err)
	unknown, ok := msg.(*UnknownMessage)
	require.True(t, ok)
	assert.Equal(t, "attendance_update", unknown.Type())
	assert.JSONEq(t, `{"employee":1}`, string(unknown.Envelope().Payload))
}

func TestDecode_Malformed(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		`{"payload":{}}`,
		`[]`,
		`{"type":"broadcast_message","payload":"oops"}`,
	} {
		_, err := Decode([]byte(frame))
		assert.True(t, apperrors.IsMalformedMessage(err), frame)
	}
}

func TestEncode(t *testing.T) {
	raw, err := Encode("ping", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping","payload":{"n":1}}`, string(raw))
}

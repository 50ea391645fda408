package model

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "tenant-portal/internal/shared/errors"
)

// Message types pushed by the backend hub
const (
	TypeBroadcastMessage          = "broadcast_message"
	TypeSuperAdminDashboardUpdate = "superadmin_dashboard_update"
	TypeSuperAdminNotification    = "superadmin_notification"

	// Wildcard receives every message that has no handler of its own
	Wildcard = "*"
)

// Envelope is the wire format of every realtime frame in both directions
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is the decoded form of an inbound frame. The set of implementations
// is closed: the known kinds below plus UnknownMessage.
type Message interface {
	// Type returns the envelope type
	Type() string
	// Envelope returns the frame as received
	Envelope() Envelope
	isMessage()
}

type base struct {
	env Envelope
}

func (b base) Type() string       { return b.env.Type }
func (b base) Envelope() Envelope { return b.env }
func (base) isMessage()           {}

// BroadcastNotice is a company broadcast created by an admin
type BroadcastNotice struct {
	base
	ID         int64      `json:"id"`
	Message    string     `json:"message"`
	ExpireDate *time.Time `json:"expire_date"`
	CreatedAt  time.Time  `json:"created_at"`
	IsRead     bool       `json:"is_read"`
}

// RecentActivity is one entry of the platform activity feed
type RecentActivity struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	// Timestamp is in Unix milliseconds
	Timestamp int64 `json:"timestamp"`
}

// At returns Timestamp as a time
func (a RecentActivity) At() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// MonthlyRevenue is one bucket of paid invoice totals
type MonthlyRevenue struct {
	Month        string  `json:"month"`
	Year         string  `json:"year"`
	TotalRevenue float64 `json:"total_revenue"`
}

// SuperAdminDashboardUpdate carries the platform-wide dashboard summary
type SuperAdminDashboardUpdate struct {
	base
	TotalCompanies       int64            `json:"total_companies"`
	ActiveSubscriptions  int64            `json:"active_subscriptions"`
	ExpiredSubscriptions int64            `json:"expired_subscriptions"`
	TrialSubscriptions   int64            `json:"trial_subscriptions"`
	RecentActivities     []RecentActivity `json:"recent_activities"`
	MonthlyRevenue       []MonthlyRevenue `json:"monthly_revenue"`
}

// SuperAdminNotification is a platform event such as a new registration
type SuperAdminNotification struct {
	base
	Kind        string `json:"type"`
	Message     string `json:"message"`
	CompanyID   int64  `json:"company_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// UnknownMessage is any well-formed envelope of a type this client does not model
type UnknownMessage struct {
	base
}

// Decode parses a frame once into its typed variant. Frames that are not a
// JSON envelope, lack a type, or carry a payload that does not fit their type
// are rejected as malformed.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.NewMalformedMessageError("frame is not a JSON envelope").WithCause(err)
	}
	if env.Type == "" {
		return nil, apperrors.NewMalformedMessageError("frame has no type")
	}

	var msg Message
	var target interface{}
	switch env.Type {
	case TypeBroadcastMessage:
		m := &BroadcastNotice{base: base{env}}
		msg, target = m, m
	case TypeSuperAdminDashboardUpdate:
		m := &SuperAdminDashboardUpdate{base: base{env}}
		msg, target = m, m
	case TypeSuperAdminNotification:
		m := &SuperAdminNotification{base: base{env}}
		msg, target = m, m
	default:
		return &UnknownMessage{base: base{env}}, nil
	}

	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, target); err != nil {
			return nil, apperrors.NewMalformedMessageError(fmt.Sprintf("payload does not match %s", env.Type)).WithCause(err)
		}
	}
	return msg, nil
}

// Encode wraps payload into an envelope of type messageType
func Encode(messageType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: messageType, Payload: raw})
}

// CloseNormal is the close code of a deliberate shutdown
const CloseNormal = 1000

// CloseAbnormal is reported when the transport went away without a close frame
const CloseAbnormal = 1006

// CloseError reports how a transport was closed
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("realtime transport closed (%d %s)", e.Code, e.Reason)
}

package model

import (
	"time"
)

// User is the authenticated principal as returned by the login endpoints
type User struct {
	ID        int64  `json:"id" bson:"id"`
	Role      string `json:"role" bson:"role"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
	Name      string `json:"name,omitempty" bson:"name,omitempty"`
	CompanyID int64  `json:"companyID,omitempty" bson:"company_id,omitempty"`
}

// CompanyProfile mirrors the company-details endpoint
type CompanyProfile struct {
	ID                    int64      `json:"id" bson:"id"`
	Name                  string     `json:"name" bson:"name"`
	Address               string     `json:"address" bson:"address"`
	AdminEmail            string     `json:"admin_email" bson:"admin_email"`
	Timezone              string     `json:"timezone" bson:"timezone"`
	SubscriptionStatus    string     `json:"subscription_status" bson:"subscription_status"`
	TrialEndDate          *time.Time `json:"trial_end_date,omitempty" bson:"trial_end_date,omitempty"`
	SubscriptionPackageID int64      `json:"subscription_package_id,omitempty" bson:"subscription_package_id,omitempty"`
	BillingCycle          string     `json:"billing_cycle,omitempty" bson:"billing_cycle,omitempty"`
}

// Snapshot is the persisted subset of the session. Fields left out of the
// configured whitelist are never populated.
type Snapshot struct {
	Token   string          `json:"token,omitempty" bson:"token,omitempty"`
	User    *User           `json:"user,omitempty" bson:"user,omitempty"`
	Company *CompanyProfile `json:"company,omitempty" bson:"company,omitempty"`
	SavedAt time.Time       `json:"saved_at" bson:"saved_at"`
}

// Empty reports whether the snapshot carries no session state
func (s *Snapshot) Empty() bool {
	return s == nil || (s.Token == "" && s.User == nil && s.Company == nil)
}

// LoginResult is the data payload of a successful login
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// BroadcastMessage is a company-wide notice shown in the admin and employee apps
type BroadcastMessage struct {
	ID         int64      `json:"id"`
	Message    string     `json:"message"`
	ExpireDate *time.Time `json:"expire_date,omitempty"`
	Timestamp  time.Time  `json:"created_at"`
	IsRead     bool       `json:"is_read"`
}

// Persisted field names accepted by the whitelist
const (
	FieldToken   = "token"
	FieldUser    = "user"
	FieldCompany = "company"
)

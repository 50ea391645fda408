package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	rtmodel "tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/tenant"

	"golang.org/x/crypto/bcrypt"
)

// Subscription statuses of a company
const (
	StatusTrial    = "trial"
	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusInactive = "inactive"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrBroadcastNotFound  = errors.New("broadcast not found")
	ErrEmailTaken         = errors.New("email already registered")
)

const maxActivities = 10

type account struct {
	user         model.User
	passwordHash []byte
}

type broadcast struct {
	msg       model.BroadcastMessage
	companyID int64
	readBy    map[int64]bool
}

// Store is the in-memory data of the development backend
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]*account
	companies  map[int64]*model.CompanyProfile
	broadcasts []*broadcast
	activities []rtmodel.RecentActivity
	revenue    []rtmodel.MonthlyRevenue
	nextID     int64
	cost       int
	now        func() time.Time
}

// NewStore creates an empty store hashing passwords with bcrypt cost
func NewStore(cost int) *Store {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		accounts:  make(map[string]*account),
		companies: make(map[int64]*model.CompanyProfile),
		cost:      cost,
		now:       time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddCompany stores a company and returns it with its id
func (s *Store) AddCompany(p model.CompanyProfile) model.CompanyProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	cp := p
	s.companies[p.ID] = &cp
	s.recordLocked("Company " + p.Name + " registered")
	return p
}

// AddAccount stores a user with a bcrypt hash of password
func (s *Store) AddAccount(u model.User, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := s.accounts[key]; exists {
		return model.User{}, ErrEmailTaken
	}
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.accounts[key] = &account{user: u, passwordHash: hash}
	return u, nil
}

// Authenticate checks the credentials and the role the login endpoint serves
func (s *Store) Authenticate(email, password, role string) (model.User, error) {
	s.mu.RLock()
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return model.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	if tenant.NormalizeRole(acc.user.Role) != tenant.NormalizeRole(role) {
		return model.User{}, ErrInvalidCredentials
	}
	return acc.user, nil
}

// Company returns the company with id
func (s *Store) Company(id int64) (model.CompanyProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return model.CompanyProfile{}, ErrCompanyNotFound
	}
	return *c, nil
}

// Entitlement reports why company may not use the product, empty when it may
func (s *Store) Entitlement(c model.CompanyProfile) string {
	switch c.SubscriptionStatus {
	case StatusActive:
		return ""
	case StatusTrial:
		if c.TrialEndDate != nil && c.TrialEndDate.Before(s.now()) {
			return "Your free trial has expired. Please subscribe to continue."
		}
		return ""
	}
	return "Access denied. Please check your subscription status."
}

// SetSubscription changes a company's subscription status
func (s *Store) SetSubscription(id int64, status string, trialEnd *time.Time) (model.CompanyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return model.CompanyProfile{}, ErrCompanyNotFound
	}
	c.SubscriptionStatus = status
	if trialEnd != nil {
		t := *trialEnd
		c.TrialEndDate = &t
	}
	s.recordLocked("Company " + c.Name + " subscription is now " + status)
	return *c, nil
}

// AddBroadcast stores a broadcast for companyID
func (s *Store) AddBroadcast(companyID int64, message string, expire *time.Time) (model.BroadcastMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[companyID]; !ok {
		return model.BroadcastMessage{}, ErrCompanyNotFound
	}
	b := &broadcast{
		msg: model.BroadcastMessage{
			ID:         s.id(),
			Message:    message,
			ExpireDate: expire,
			Timestamp:  s.now().UTC(),
		},
		companyID: companyID,
		readBy:    make(map[int64]bool),
	}
	s.broadcasts = append(s.broadcasts, b)
	return b.msg, nil
}

// Broadcasts returns the unexpired broadcasts of companyID, newest first,
// with IsRead set for userID
func (s *Store) Broadcasts(companyID, userID int64) []model.BroadcastMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := []model.BroadcastMessage{}
	for _, b := range s.broadcasts {
		if b.companyID != companyID {
			continue
		}
		if b.msg.ExpireDate != nil && b.msg.ExpireDate.Before(now) {
			continue
		}
		m := b.msg
		m.IsRead = b.readBy[userID]
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// MarkRead marks broadcast id as read by userID
func (s *Store) MarkRead(companyID, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.broadcasts {
		if b.msg.ID == id && b.companyID == companyID {
			b.readBy[userID] = true
			return nil
		}
	}
	return ErrBroadcastNotFound
}

// AddRevenue records a paid month for the dashboard
func (s *Store) AddRevenue(r rtmodel.MonthlyRevenue) {
	s.mu.Lock()
	s.revenue = append(s.revenue, r)
	s.mu.Unlock()
}

// Dashboard summarizes the platform for the superadmin dashboard
func (s *Store) Dashboard() rtmodel.SuperAdminDashboardUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var d rtmodel.SuperAdminDashboardUpdate
	now := s.now()
	for _, c := range s.companies {
		d.TotalCompanies++
		switch c.SubscriptionStatus {
		case StatusActive:
			d.ActiveSubscriptions++
		case StatusTrial:
			if c.TrialEndDate != nil && c.TrialEndDate.Before(now) {
				d.ExpiredSubscriptions++
			} else {
				d.TrialSubscriptions++
			}
		default:
			d.ExpiredSubscriptions++
		}
	}
	d.RecentActivities = append([]rtmodel.RecentActivity{}, s.activities...)
	d.MonthlyRevenue = append([]rtmodel.MonthlyRevenue{}, s.revenue...)
	return d
}

// recordLocked prepends an activity. Caller holds mu.
func (s *Store) recordLocked(description string) {
	a := rtmodel.RecentActivity{ID: s.id(), Description: description, Timestamp: s.now().UnixMilli()}
	s.activities = append([]rtmodel.RecentActivity{a}, s.activities...)
	if len(s.activities) > maxActivities {
		s.activities = s.activities[:maxActivities]
	}
}

// Seed fills the store with one platform superadmin and two companies: "Acme"
// on a running trial with an admin and an employee, and "Globex" whose trial
// has ended.
func Seed(s *Store, password string) error {
	now := s.now().UTC()
	trialEnd := now.AddDate(0, 0, 14)
	expired := now.AddDate(0, 0, -1)

	acme := s.AddCompany(model.CompanyProfile{
		Name:               "Acme",
		Address:            "1 Main Street",
		AdminEmail:         "admin@acme.test",
		Timezone:           "Asia/Jakarta",
		SubscriptionStatus: StatusTrial,
		TrialEndDate:       &trialEnd,
	})
	globex := s.AddCompany(model.CompanyProfile{
		Name:               "Globex",
		Address:            "42 Side Road",
		AdminEmail:         "admin@globex.test",
		Timezone:           "UTC",
		SubscriptionStatus: StatusTrial,
		TrialEndDate:       &expired,
	})

	users := []model.User{
		{Email: "superadmin@portal.test", Name: "Platform Owner", Role: tenant.RoleSuperAdmin},
		{Email: "admin@acme.test", Name: "Acme Admin", Role: tenant.RoleAdmin, CompanyID: acme.ID},
		{Email: "employee@acme.test", Name: "Acme Employee", Role: tenant.RoleEmployee, CompanyID: acme.ID},
		{Email: "admin@globex.test", Name: "Globex Admin", Role: tenant.RoleAdmin, CompanyID: globex.ID},
	}
	for _, u := range users {
		if _, err := s.AddAccount(u, password); err != nil {
			return err
		}
	}
	if _, err := s.AddBroadcast(acme.ID, "Welcome to the portal", nil); err != nil {
		return err
	}
	s.AddRevenue(rtmodel.MonthlyRevenue{Month: now.Month().String(), Year: now.Format("2006"), TotalRevenue: 0})
	return nil
}

package service_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
)

// --- Mocks ---

type mockSource struct {
	name  string
	rows  []map[string]any
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) FetchOutages(_ context.Context) ([]map[string]any, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.rows, m.err
}

func (m *mockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type storedUser struct {
	user domain.User
	hash string
}

type mockUserStore struct {
	mu    sync.Mutex
	users map[string]*storedUser
	next  int
	err   error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]*storedUser{}}
}

func (m *mockUserStore) CreateUser(_ context.Context, user *domain.User, hash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.user.Email == user.Email {
			return nil, &domain.ErrConflict{Message: "Този имейл вече е зает."}
		}
	}
	m.next++
	u := *user
	u.ID = "user-" + strconv.Itoa(m.next)
	m.users[u.ID] = &storedUser{user: u, hash: hash}
	return &u, nil
}

func (m *mockUserStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	cp := u.user
	return &cp, nil
}

func (m *mockUserStore) GetCredentialByEmail(_ context.Context, email string) (*domain.UserCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.user.Email == email {
			return &domain.UserCredential{UserID: u.user.ID, Email: email, PasswordHash: u.hash}, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, id string, userCols, profileCols map[string]any) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	if v, ok := userCols["name"].(string); ok {
		u.user.Name = v
	}
	if v, ok := profileCols["district"].(string); ok {
		u.user.District = v
	}
	if v, ok := profileCols["email_notifications"].(bool); ok {
		u.user.EmailNotifications = v
	}
	cp := u.user
	return &cp, nil
}

func (m *mockUserStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *mockUserStore) ListNotifiableUsers(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.User
	for _, u := range m.users {
		if u.user.EmailNotifications {
			out = append(out, u.user)
		}
	}
	return out, nil
}

// add stores a user directly, bypassing registration.
func (m *mockUserStore) add(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &storedUser{user: u}
}

type mockSubStore struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
}

func newMockSubStore() *mockSubStore {
	return &mockSubStore{subs: map[string]*domain.Subscription{}}
}

func (m *mockSubStore) GetSubscription(_ context.Context, userID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubStore) SaveSubscription(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

func (m *mockSubStore) DeactivateSubscription(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[userID]; ok {
		s.Active = false
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *mockMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// UserStore implementation: tables users + user_profile
// ============================================================

// ErrEmailTaken is the message shown when registration hits an existing email.
const ErrEmailTaken = "Този имейл вече е зает."

type userRow struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type profileRow struct {
	ID                 string `json:"id"`
	Address            string `json:"address"`
	City               string `json:"city"`
	District           string `json:"district"`
	Notifications      bool   `json:"notifications"`
	EmailNotifications bool   `json:"email_notifications"`
}

func toUser(u userRow, p profileRow) *domain.User {
	return &domain.User{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Address:            p.Address,
		City:               p.City,
		District:           p.District,
		Notifications:      p.Notifications,
		EmailNotifications: p.EmailNotifications,
		CreatedAt:          u.CreatedAt,
	}
}

// CreateUser inserts the account row followed by its profile row. A profile
// failure removes the account again.
func (c *Client) CreateUser(ctx context.Context, user *domain.User, passwordHash string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	id := uuid.New().String()
	email := strings.ToLower(strings.TrimSpace(user.Email))

	var created []userRow
	err := c.call(ctx, "users", func() error {
		body, err := c.doPost(ctx, "users", map[string]any{
			"id":            id,
			"email":         email,
			"name":          user.Name,
			"password_hash": passwordHash,
		})
		if err != nil {
			if isDuplicate(err) {
				return resilience.Permanent(&domain.ErrConflict{Message: ErrEmailTaken})
			}
			return err
		}
		if err := json.Unmarshal(body, &created); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	profile := profileRow{
		ID:                 id,
		Address:            user.Address,
		City:               user.City,
		District:           user.District,
		Notifications:      user.Notifications,
		EmailNotifications: user.EmailNotifications,
	}
	err = c.call(ctx, "user_profile", func() error {
		_, err := c.doPost(ctx, "user_profile", profile)
		return err
	})
	if err != nil {
		if delErr := c.doDelete(ctx, "users?"+eq("id", id)); delErr != nil {
			c.logger.Error("supabase: failed to roll back user",
				zap.String("user_id", id),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	row := userRow{ID: id, Email: email, Name: user.Name, CreatedAt: time.Now().UTC()}
	if len(created) > 0 {
		row = created[0]
	}
	span.SetAttributes(attribute.String("user.id", id))
	return toUser(row, profile), nil
}

// GetUserByID joins the account with its profile.
func (c *Client) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByID")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var (
		users    []userRow
		profiles []profileRow
	)
	err := c.call(ctx, "users", func() error {
		body, err := c.doGet(ctx, "users?select=id,email,name,created_at&"+eq("id", userID)+"&limit=1")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: userID})
		}
		if err := json.Unmarshal(body, &users); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
		if len(users) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: userID})
		}

		body, err = c.doGet(ctx, "user_profile?select=*&"+eq("id", userID)+"&limit=1")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &profiles); err != nil {
			return fmt.Errorf("decode user_profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var profile profileRow
	if len(profiles) > 0 {
		profile = profiles[0]
	}
	return toUser(users[0], profile), nil
}

// GetCredentialByEmail returns nil when no account uses the email.
func (c *Client) GetCredentialByEmail(ctx context.Context, email string) (*domain.UserCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCredentialByEmail")
	defer span.End()

	var rows []userRow
	err := c.call(ctx, "users", func() error {
		path := "users?select=id,email,password_hash&" + eq("email", strings.ToLower(strings.TrimSpace(email))) + "&limit=1"
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return nil
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &domain.UserCredential{
		UserID:       rows[0].ID,
		Email:        rows[0].Email,
		PasswordHash: rows[0].PasswordHash,
	}, nil
}

// UpdateUser patches the columns given for each table and returns the
// resulting user.
func (c *Client) UpdateUser(ctx context.Context, userID string, userCols, profileCols map[string]any) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if len(userCols) > 0 {
		err := c.call(ctx, "users", func() error {
			return c.doPatch(ctx, "users?"+eq("id", userID), userCols)
		})
		if err != nil {
			return nil, err
		}
	}
	if len(profileCols) > 0 {
		err := c.call(ctx, "user_profile", func() error {
			return c.doPatch(ctx, "user_profile?"+eq("id", userID), profileCols)
		})
		if err != nil {
			return nil, err
		}
	}
	return c.GetUserByID(ctx, userID)
}

// DeleteUser removes the subscription, profile and account rows.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	for _, table := range []string{"subscriptions", "user_profile"} {
		column := "id"
		if table == "subscriptions" {
			column = "user_id"
		}
		err := c.call(ctx, table, func() error {
			return c.doDelete(ctx, table+"?"+eq(column, userID))
		})
		if err != nil {
			return err
		}
	}
	return c.call(ctx, "users", func() error {
		return c.doDelete(ctx, "users?"+eq("id", userID))
	})
}

// ListNotifiableUsers returns every user that opted into email alerts.
func (c *Client) ListNotifiableUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListNotifiableUsers")
	defer span.End()

	var profiles []profileRow
	err := c.call(ctx, "user_profile", func() error {
		body, err := c.doGet(ctx, "user_profile?select=*&email_notifications=eq.true")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return nil
		}
		return json.Unmarshal(body, &profiles)
	})
	if err != nil || len(profiles) == 0 {
		return []domain.User{}, err
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}

	var users []userRow
	err = c.call(ctx, "users", func() error {
		body, err := c.doGet(ctx, "users?select=id,email,name,created_at&"+in("id", ids))
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return nil
		}
		return json.Unmarshal(body, &users)
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]userRow, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]domain.User, 0, len(profiles))
	for _, p := range profiles {
		u, ok := byID[p.ID]
		if !ok {
			continue
		}
		out = append(out, *toUser(u, p))
	}
	span.SetAttributes(attribute.Int("users.count", len(out)))
	return out, nil
}

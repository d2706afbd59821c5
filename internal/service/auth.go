// Package service holds the application services. AuthService handles
// registration, login, logout and access-token validation.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	accessTokenType = "access"
	revokedPrefix   = "revoked:"
)

// AuthService orchestrates authentication flows.
type AuthService struct {
	users     port.UserStore
	revoked   port.Cache[bool]
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service. revoked holds logged-out token
// ids and should keep entries at least as long as accessTTL.
func NewAuthService(users port.UserStore, revoked port.Cache[bool], jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		revoked:   revoked,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// ============================================================
// Register: POST /api/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if s.users == nil {
		return nil, &domain.ErrUnavailable{Feature: "registration"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, &domain.User{
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		Name:               strings.TrimSpace(req.Name),
		Address:            req.Address,
		City:               req.City,
		District:           req.District,
		Notifications:      req.Notifications,
		EmailNotifications: req.EmailNotifications,
	}, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// ============================================================
// Login: POST /api/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if s.users == nil {
		return nil, &domain.ErrUnavailable{Feature: "login"}
	}

	cred, err := s.users.GetCredentialByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	if cred == nil {
		return nil, &domain.ErrUnauthorized{Message: "Невалиден имейл или парола."}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("user_id", cred.UserID))
		return nil, &domain.ErrUnauthorized{Message: "Невалиден имейл или парола."}
	}

	user, err := s.users.GetUserByID(ctx, cred.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	accessToken, err := s.signAccessToken(cred.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", cred.UserID))
	s.logger.Info("user logged in", zap.String("user_id", cred.UserID))

	return &domain.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        user,
	}, nil
}

// ============================================================
// Logout: POST /api/auth/logout
// ============================================================

// Logout revokes the presented token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *JWTClaims) error {
	_, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if claims.ID == "" {
		return &domain.ErrUnauthorized{Message: "Невалиден токен."}
	}
	s.revoked.Set(revokedPrefix+claims.ID, true)

	s.logger.Info("user logged out", zap.String("user_id", claims.Sub))
	return nil
}

// ============================================================
// ValidateAccessToken: used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub  string `json:"sub"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Невалиден или изтекъл токен."}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Невалиден токен."}
	}
	if claims.Type != accessTokenType {
		return nil, &domain.ErrUnauthorized{Message: "Невалиден тип токен."}
	}
	if revoked, _ := s.revoked.Get(revokedPrefix + claims.ID); revoked {
		return nil, &domain.ErrUnauthorized{Message: "Сесията е прекратена."}
	}

	return claims, nil
}

func (s *AuthService) signAccessToken(userID string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:  userID,
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "pakli",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyloop/studyloop-backend/internal/domain/user"
	"github.com/studyloop/studyloop-backend/internal/pkg/envutil"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/repos"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type AuthService interface {
	RegisterUser(ctx context.Context, input RegisterInput) (*user.User, string, error)
	LoginUser(ctx context.Context, email, password string) (*user.User, string, error)
	ParseToken(tokenString string) (uuid.UUID, error)
	AccessTTL() time.Duration
}

type authService struct {
	log       *logger.Logger
	userRepo  repos.UserRepo
	secretKey string
	accessTTL time.Duration
}

func NewAuthService(log *logger.Logger, userRepo repos.UserRepo) (AuthService, error) {
	secret := envutil.GetEnv("JWT_SECRET_KEY", "", log)
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	ttlMinutes := envutil.GetEnvAsInt("JWT_ACCESS_TTL_MINUTES", 1440, log)
	return &authService{
		log:       log.With("service", "AuthService"),
		userRepo:  userRepo,
		secretKey: secret,
		accessTTL: time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

func (as *authService) RegisterUser(ctx context.Context, input RegisterInput) (*user.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", &ValidationError{Field: "email", Message: "a valid email is required"}
	}
	if len(input.Password) < 8 {
		return nil, "", &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}

	taken, err := as.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hash),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}
	if _, err := as.userRepo.Create(ctx, nil, u); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := as.generateAccessToken(u)
	if err != nil {
		return nil, "", err
	}
	as.log.Info("User registered", "user_id", u.ID.String())
	return u, token, nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (*user.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, "", fmt.Errorf("fetch user: %w", err)
	}
	if u == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := as.generateAccessToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (as *authService) generateAccessToken(u *user.User) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   u.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.secretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) ParseToken(tokenString string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(as.secretKey), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }

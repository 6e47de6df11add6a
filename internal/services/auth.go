package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/requestdata"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

type AuthService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*types.User, error)
	Login(ctx context.Context, email, password string) (string, string, error)
	Refresh(ctx context.Context) (string, string, error)
	Logout(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	profileRepo  repos.UserProfileRepo
	tokenRepo    repos.UserTokenRepo
	jwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	profileRepo repos.UserProfileRepo,
	tokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:           db,
		log:          baseLog.With("service", "AuthService"),
		userRepo:     userRepo,
		profileRepo:  profileRepo,
		tokenRepo:    tokenRepo,
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

func (s *authService) Register(ctx context.Context, email, password, firstName, lastName string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apierr.New(http.StatusBadRequest, "invalid_email", fmt.Errorf("a valid email is required"))
	}
	if len(password) < 8 {
		return nil, apierr.New(http.StatusBadRequest, "weak_password", fmt.Errorf("password must be at least 8 characters"))
	}

	exists, err := s.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, apierr.New(http.StatusConflict, "email_taken", fmt.Errorf("an account with this email already exists"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hash),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.Create(ctx, tx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		profile := &types.UserProfile{
			ID:        uuid.New(),
			UserID:    user.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.profileRepo.Create(ctx, tx, profile); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return "", "", fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return "", "", apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", "", apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	}
	return s.issueTokens(ctx, nil, user.ID)
}

func (s *authService) issueTokens(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (string, string, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("generate access token: %w", err)
	}
	refreshToken := uuid.New().String()
	now := time.Now()
	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.refreshTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.tokenRepo.Create(ctx, tx, row); err != nil {
		return "", "", fmt.Errorf("persist token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func (s *authService) Refresh(ctx context.Context) (string, string, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.RefreshToken == "" {
		return "", "", apierr.New(http.StatusUnauthorized, "missing_refresh_token", fmt.Errorf("refresh token required"))
	}
	row, err := s.tokenRepo.GetByRefreshToken(ctx, nil, rd.RefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("load refresh token: %w", err)
	}
	if row == nil || row.ExpiresAt.Before(time.Now()) {
		return "", "", apierr.New(http.StatusUnauthorized, "invalid_refresh_token", fmt.Errorf("refresh token expired or unknown"))
	}

	var access, refresh string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tokenRepo.DeleteByUserID(ctx, tx, row.UserID); err != nil {
			return fmt.Errorf("rotate tokens: %w", err)
		}
		a, r, err := s.issueTokens(ctx, tx, row.UserID)
		if err != nil {
			return err
		}
		access, refresh = a, r
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *authService) Logout(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("not signed in"))
	}
	return s.tokenRepo.DeleteByUserID(ctx, nil, rd.UserID)
}

type accessClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func (s *authService) generateAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := accessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecretKey)
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecretKey, nil
	})
	if err != nil || !parsed.Valid {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("invalid or expired token"))
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("invalid token claims"))
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("invalid token subject"))
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

// Me bundles the account row with its profile for the session endpoint.
type Me struct {
	User    *types.User        `json:"user"`
	Profile *types.UserProfile `json:"profile,omitempty"`
}

type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	School      *string `json:"school,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

type UserService interface {
	GetMe(ctx context.Context, userID uuid.UUID) (*Me, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*types.UserProfile, error)
}

type userService struct {
	log         *logger.Logger
	userRepo    repos.UserRepo
	profileRepo repos.UserProfileRepo
}

func NewUserService(baseLog *logger.Logger, userRepo repos.UserRepo, profileRepo repos.UserProfileRepo) UserService {
	return &userService{
		log:         baseLog.With("service", "UserService"),
		userRepo:    userRepo,
		profileRepo: profileRepo,
	}
}

func (s *userService) GetMe(ctx context.Context, userID uuid.UUID) (*Me, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apierr.New(http.StatusNotFound, "user_not_found", fmt.Errorf("user not found"))
	}
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &Me{User: user, Profile: profile}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*types.UserProfile, error) {
	fields := map[string]interface{}{"updated_at": time.Now()}
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if len(name) > 100 {
			return nil, apierr.New(http.StatusBadRequest, "invalid_profile",
				fmt.Errorf("display name must be at most 100 characters"))
		}
		fields["display_name"] = name
	}
	if update.School != nil {
		fields["school"] = strings.TrimSpace(*update.School)
	}
	if update.Timezone != nil {
		tz := strings.TrimSpace(*update.Timezone)
		if tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return nil, apierr.New(http.StatusBadRequest, "invalid_profile",
					fmt.Errorf("unknown timezone %q", tz))
			}
		}
		fields["timezone"] = tz
	}
	if len(fields) == 1 {
		return nil, apierr.New(http.StatusBadRequest, "empty_update", fmt.Errorf("no fields to update"))
	}

	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		// Accounts created before profiles existed get one on first write.
		profile = &types.UserProfile{
			ID:        uuid.New(),
			UserID:    userID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if _, err := s.profileRepo.Create(ctx, nil, profile); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
	}
	if err := s.profileRepo.Update(ctx, nil, userID, fields); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.profileRepo.GetByUserID(ctx, nil, userID)
}

package service

import (
	"context"

	"blogpulse/internal/model"
	"blogpulse/internal/repository"
)

// DeviceService manages push device tokens. The blog owner's companion app
// registers its tokens here; the engagement worker reads them back to fan
// out notifications.
type DeviceService struct {
	tokenRepo repository.DeviceTokenRepository
}

func NewDeviceService(tokenRepo repository.DeviceTokenRepository) *DeviceService {
	return &DeviceService{tokenRepo: tokenRepo}
}

// RegisterToken stores or updates a device's push token. The token is
// unique, so if the same token exists for a different user it is reassigned
// (device changed hands).
func (s *DeviceService) RegisterToken(ctx context.Context, userID int64, token, platform string) error {
	switch platform {
	case model.PlatformIOS, model.PlatformAndroid, model.PlatformExpo:
	default:
		platform = model.PlatformExpo
	}
	return s.tokenRepo.Upsert(ctx, userID, token, platform)
}

// RemoveToken removes a device token (e.g., on logout).
func (s *DeviceService) RemoveToken(ctx context.Context, token string) error {
	return s.tokenRepo.Delete(ctx, token)
}

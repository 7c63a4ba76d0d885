package core

import (
	"context"
	"errors"

	"chimebot/internal/storage"
	"chimebot/pkg/logx"
)

// zoneService resolves per-user display time zones with a configured
// fallback. It implements ZonePort.
type zoneService struct {
	store       storage.Store
	defaultZone string
	log         logx.Logger
}

func (z *zoneService) UserZone(ctx context.Context, userID int64) string {
	zone, err := z.store.UserTimezone(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			z.log.Warn("user timezone lookup failed", logx.Int64("user", userID), logx.Err(err))
		}
		return z.defaultZone
	}
	return zone
}

func (z *zoneService) SetUserZone(ctx context.Context, userID int64, zone string) error {
	return z.store.SetUserTimezone(ctx, userID, zone)
}

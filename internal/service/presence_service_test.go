package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestPresenceOnlineResolvesRoleAndBroadcasts(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo := newStubUserRepo(models.User{ID: 1, Username: "rina", Role: models.RoleAdministrator})
	dispatcher := &recordingDispatcher{}
	svc := NewPresenceService(repo, dispatcher, testLogger(), fixedClock(now))

	role, ok := svc.Online(context.Background(), 1)
	require.True(t, ok)
	require.Equal(t, models.RoleAdministrator, role)

	require.Equal(t, []presenceUpdate{{userID: 1, status: models.PresenceOnline, online: true, seenAt: now}}, repo.updates)

	changed := dispatcher.ofType(dto.EventPresenceChanged)
	require.Len(t, changed, 2)
	require.Equal(t, realtime.GroupAdmins, changed[0].target)
	require.Equal(t, realtime.GroupStaff, changed[1].target)
	payload := changed[0].event.Payload.(dto.PresencePayload)
	require.True(t, payload.IsOnlineNow)
	require.Equal(t, now, payload.LastSeenAt)
}

func TestPresenceOnlineUnknownUserWritesNothing(t *testing.T) {
	repo := newStubUserRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewPresenceService(repo, dispatcher, testLogger(), nil)

	role, ok := svc.Online(context.Background(), 404)
	require.False(t, ok)
	require.Empty(t, role)
	require.Empty(t, repo.updates)
	require.Empty(t, dispatcher.all())

	_, ok = svc.Online(context.Background(), 0)
	require.False(t, ok)

	repo.findErr = errors.New("connection refused")
	_, ok = svc.Online(context.Background(), 1)
	require.False(t, ok)
}

func TestPresencePersistenceFailureIsSwallowed(t *testing.T) {
	repo := newStubUserRepo(models.User{ID: 2, Role: models.RoleStaff})
	repo.updateErr = errors.New("deadlock")
	dispatcher := &recordingDispatcher{}
	svc := NewPresenceService(repo, dispatcher, testLogger(), nil)

	role, ok := svc.Online(context.Background(), 2)
	require.True(t, ok)
	require.Equal(t, models.RoleStaff, role)

	require.NotPanics(t, func() {
		svc.Offline(context.Background(), 2)
	})
	require.Empty(t, dispatcher.all())
}

func TestPresenceLastWriteWinsAcrossTabs(t *testing.T) {
	repo := newStubUserRepo(models.User{ID: 3, Role: models.RoleStaff})
	svc := NewPresenceService(repo, nil, testLogger(), nil)
	ctx := context.Background()

	_, ok := svc.Online(ctx, 3)
	require.True(t, ok)
	_, ok = svc.Online(ctx, 3)
	require.True(t, ok)

	svc.Offline(ctx, 3)

	presence, err := svc.Get(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, models.PresenceOffline, presence.Status)
	require.False(t, presence.IsOnlineNow)
	require.NotNil(t, presence.LastSeenAt)
}

func TestPresenceGetAndListOnline(t *testing.T) {
	repo := newStubUserRepo(
		models.User{ID: 1, Username: "rina", Role: models.RoleAdministrator},
		models.User{ID: 2, Username: "budi", Role: models.RoleStaff},
	)
	svc := NewPresenceService(repo, nil, testLogger(), nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, 9)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, ok := svc.Online(ctx, 2)
	require.True(t, ok)

	online, err := svc.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	require.Equal(t, "budi", online[0].Username)
	require.Equal(t, models.PresenceOnline, online[0].Status)
}

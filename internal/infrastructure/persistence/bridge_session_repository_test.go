package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
)

func TestGormBridgeSessionRepository_FindOrCreate(t *testing.T) {
	db := setupChatTestDB(t)
	repo := NewGormBridgeSessionRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()

	_, err := repo.FindByTenant(ctx, tenantID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	created, err := repo.FindOrCreateByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, chat.BridgeStatusDisconnected, created.Status)

	// Second call returns the same row, not a new one.
	again, err := repo.FindOrCreateByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestGormBridgeSessionRepository_SaveStatusTransitions(t *testing.T) {
	db := setupChatTestDB(t)
	repo := NewGormBridgeSessionRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	session, err := repo.FindOrCreateByTenant(ctx, tenantID)
	require.NoError(t, err)

	session.SetQR("data:image/png;base64,abc")
	require.NoError(t, repo.Save(ctx, session))

	found, err := repo.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, chat.BridgeStatusPendingQR, found.Status)
	assert.Equal(t, "data:image/png;base64,abc", found.LastQR)

	require.NoError(t, found.SetStatus(chat.BridgeStatusConnected))
	found.SetPhoneHint("+996700******")
	require.NoError(t, repo.Save(ctx, found))

	connected, err := repo.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, chat.BridgeStatusConnected, connected.Status)
	assert.Empty(t, connected.LastQR, "QR is cleared once connected")
	assert.Equal(t, "+996700******", connected.PhoneHint)
}

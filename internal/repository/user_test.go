package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
)

func TestUserCreateDuplicateEmail(t *testing.T) {
	f := setupConvTest(t)
	ctx := context.Background()

	alice, err := f.users.GetByID(ctx, f.alice)
	require.NoError(t, err)

	dup := *alice
	dup.ID = f.node.Generate().Int64()
	err = f.users.Create(ctx, &dup)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))
}

func TestUserGetByIDNotFound(t *testing.T) {
	f := setupConvTest(t)

	_, err := f.users.GetByID(context.Background(), -1)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSetOnlineStampsLastSeen(t *testing.T) {
	f := setupConvTest(t)
	ctx := context.Background()

	user, err := f.users.SetOnline(ctx, f.alice, true)
	require.NoError(t, err)
	assert.True(t, user.IsOnline)

	user, err = f.users.SetOnline(ctx, f.alice, false)
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
	require.NotNil(t, user.LastSeen)
}

func TestListOthersExcludesViewer(t *testing.T) {
	f := setupConvTest(t)
	ctx := context.Background()

	users, err := f.users.ListOthers(ctx, f.alice)
	require.NoError(t, err)
	for _, u := range users {
		assert.NotEqual(t, f.alice, u.ID)
	}
}

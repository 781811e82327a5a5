package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"potsync/domain/entities"
	"potsync/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_Credit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing account", func(t *testing.T) {
		account, err := repo.GetCredit(ctx, "amex")
		require.NoError(t, err)
		assert.Nil(t, account)

		_, err = repo.GetBaseline(ctx, "amex")
		assert.True(t, errors.Is(err, entities.ErrAccountNotFound))

		cooldown, err := repo.GetCooldown(ctx, "amex")
		require.NoError(t, err)
		assert.Nil(t, cooldown)
	})

	t.Run("upsert and read back", func(t *testing.T) {
		account := testutil.CreateTestCreditAccount("amex", "pot_amex", 12345)
		require.NoError(t, repo.UpsertCredit(ctx, account))
		assert.False(t, account.CreatedAt.IsZero())

		stored, err := repo.GetCredit(ctx, "amex")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "pot_amex", stored.PotID)
		assert.Equal(t, int64(12345), stored.BaselineBalance)
		assert.Equal(t, "access-amex", stored.Credentials.AccessToken)
		assert.False(t, stored.Cooldown.IsSet())
	})

	t.Run("account without pot", func(t *testing.T) {
		require.NoError(t, repo.UpsertCredit(ctx, testutil.CreateTestCreditAccount("barclaycard", "", 0)))

		stored, err := repo.GetCredit(ctx, "barclaycard")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.False(t, stored.HasPot())
	})

	t.Run("list ordered by type", func(t *testing.T) {
		accounts, err := repo.ListCredit(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "amex", accounts[0].Type)
		assert.Equal(t, "barclaycard", accounts[1].Type)
	})

	t.Run("baseline round trip", func(t *testing.T) {
		require.NoError(t, repo.SetBaseline(ctx, "amex", -250))

		baseline, err := repo.GetBaseline(ctx, "amex")
		require.NoError(t, err)
		assert.Equal(t, int64(-250), baseline)
	})

	t.Run("baseline of unknown account", func(t *testing.T) {
		err := repo.SetBaseline(ctx, "unknown", 1)
		assert.True(t, errors.Is(err, entities.ErrAccountNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteCredit(ctx, "barclaycard"))

		stored, err := repo.GetCredit(ctx, "barclaycard")
		require.NoError(t, err)
		assert.Nil(t, stored)

		// deleting twice is not an error
		require.NoError(t, repo.DeleteCredit(ctx, "barclaycard"))
	})
}

func TestAccountRepository_Cooldown(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()
	require.NoError(t, repo.UpsertCredit(ctx, testutil.CreateTestCreditAccount("amex", "pot_amex", 900)))

	until := time.Date(2024, 3, 1, 15, 0, 0, 123456000, time.UTC)
	cooldown := testutil.CreateTestCooldown(until, 900, 500)

	require.NoError(t, repo.SetCooldown(ctx, "amex", cooldown))

	stored, err := repo.GetCooldown(ctx, "amex")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Until)
	assert.True(t, stored.Until.Equal(until))
	assert.Equal(t, int64(900), *stored.RefCardBalance)
	assert.Equal(t, int64(500), *stored.RefPotBalance)

	account, err := repo.GetCredit(ctx, "amex")
	require.NoError(t, err)
	assert.True(t, account.Cooldown.Until.Equal(until))

	require.NoError(t, repo.ClearCooldown(ctx, "amex"))

	stored, err = repo.GetCooldown(ctx, "amex")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsSet())
	assert.Nil(t, stored.RefCardBalance)
	assert.Nil(t, stored.RefPotBalance)

	err = repo.SetCooldown(ctx, "unknown", cooldown)
	assert.True(t, errors.Is(err, entities.ErrAccountNotFound))
}

func TestAccountRepository_Primary(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	primary, err := repo.GetPrimary(ctx)
	require.NoError(t, err)
	assert.Nil(t, primary)

	require.NoError(t, repo.UpsertPrimary(ctx, testutil.CreateTestPrimaryAccount("monzo")))

	primary, err = repo.GetPrimary(ctx)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, "monzo", primary.Type)
	assert.Equal(t, "refresh-monzo", primary.Credentials.RefreshToken)
	require.NotNil(t, primary.Credentials.Expiry)

	t.Run("linking another primary replaces it", func(t *testing.T) {
		require.NoError(t, repo.UpsertPrimary(ctx, testutil.CreateTestPrimaryAccount("starling")))

		primary, err := repo.GetPrimary(ctx)
		require.NoError(t, err)
		require.NotNil(t, primary)
		assert.Equal(t, "starling", primary.Type)
	})

	t.Run("type already used by a credit account", func(t *testing.T) {
		require.NoError(t, repo.UpsertCredit(ctx, testutil.CreateTestCreditAccount("amex", "pot_amex", 0)))

		err := repo.UpsertPrimary(ctx, testutil.CreateTestPrimaryAccount("amex"))
		assert.True(t, errors.Is(err, entities.ErrConfiguration))
	})

	t.Run("save credentials", func(t *testing.T) {
		expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		err := repo.SaveCredentials(ctx, "amex", entities.Credentials{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			Expiry:       &expiry,
		})
		require.NoError(t, err)

		account, err := repo.GetCredit(ctx, "amex")
		require.NoError(t, err)
		assert.Equal(t, "new-access", account.Credentials.AccessToken)
		assert.Equal(t, "new-refresh", account.Credentials.RefreshToken)
		assert.True(t, account.Credentials.Expiry.Equal(expiry))

		err = repo.SaveCredentials(ctx, "unknown", entities.Credentials{})
		assert.True(t, errors.Is(err, entities.ErrAccountNotFound))
	})
}

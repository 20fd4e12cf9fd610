package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonshare/flow-backend/internal/models"
)

func TestProgression_FirstTransactionPromotesToIntermediate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 100)
	ctx := context.Background()

	p, err := env.prog.RecordTransaction(ctx, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, models.TierIntermediate, p.Tier)
	assert.Equal(t, int64(1), p.TotalTransactions)
	assert.Equal(t, int64(1), p.CreditsTransactions)
	assert.NotNil(t, p.FirstTransactionAt)
	assert.NotNil(t, p.IntermediateSince)
}

func TestProgression_AgePromotesWithoutTransactions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("old", 100)
	// 4-day-old basic account with no activity yet.
	env.store.SetProgression(models.Progression{
		AccountID:        "old",
		Tier:             models.TierBasic,
		AccountCreatedAt: time.Now().Add(-4 * 24 * time.Hour),
	})

	p, err := env.prog.RecordTransaction(context.Background(), "old", false)
	require.NoError(t, err)
	assert.Equal(t, models.TierIntermediate, p.Tier)
}

func TestProgression_NeverSkipsATier(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("busy", 100)
	// Counters that would satisfy the advanced conditions too.
	env.store.SetProgression(models.Progression{
		AccountID:           "busy",
		Tier:                models.TierBasic,
		TotalTransactions:   9,
		CreditsTransactions: 9,
		AccountCreatedAt:    time.Now().Add(-30 * 24 * time.Hour),
	})
	ctx := context.Background()

	p, err := env.prog.RecordTransaction(ctx, "busy", true)
	require.NoError(t, err)
	// One call, one promotion.
	assert.Equal(t, models.TierIntermediate, p.Tier)

	p, err = env.prog.RecordTransaction(ctx, "busy", true)
	require.NoError(t, err)
	assert.Equal(t, models.TierAdvanced, p.Tier)
}

func TestProgression_AdvancedByCreditsTransactions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("cr", 100)
	now := time.Now()
	env.store.SetProgression(models.Progression{
		AccountID:           "cr",
		Tier:                models.TierIntermediate,
		TotalTransactions:   4,
		CreditsTransactions: 4,
		IntermediateSince:   &now,
		AccountCreatedAt:    now,
	})

	p, err := env.prog.RecordTransaction(context.Background(), "cr", true)
	require.NoError(t, err)
	assert.Equal(t, models.TierAdvanced, p.Tier)
	assert.NotNil(t, p.AdvancedSince)
}

func TestProgression_AdvancedByTenure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("tenured", 100)
	entered := time.Now().Add(-15 * 24 * time.Hour)
	env.store.SetProgression(models.Progression{
		AccountID:         "tenured",
		Tier:              models.TierIntermediate,
		TotalTransactions: 1,
		IntermediateSince: &entered,
		AccountCreatedAt:  entered,
	})

	p, err := env.prog.RecordTransaction(context.Background(), "tenured", false)
	require.NoError(t, err)
	assert.Equal(t, models.TierAdvanced, p.Tier)
}

func TestProgression_AdvancedIsTerminal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("top", 100)
	now := time.Now()
	env.store.SetProgression(models.Progression{
		AccountID:         "top",
		Tier:              models.TierAdvanced,
		TotalTransactions: 50,
		AdvancedSince:     &now,
		AccountCreatedAt:  now,
	})
	ctx := context.Background()

	prev := models.TierAdvanced.Rank()
	for i := 0; i < 5; i++ {
		p, err := env.prog.RecordTransaction(ctx, "top", true)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Tier.Rank(), prev)
		prev = p.Tier.Rank()
	}
}

func TestProgression_FeaturesAreAdditive(t *testing.T) {
	basic := models.TierBasic.Features()
	intermediate := models.TierIntermediate.Features()
	advanced := models.TierAdvanced.Features()

	assert.Subset(t, intermediate, basic)
	assert.Subset(t, advanced, intermediate)
	assert.Contains(t, intermediate, "credits_payment")
	assert.NotContains(t, basic, "credits_payment")
	assert.Contains(t, advanced, "timebank_exchange")
	assert.NotContains(t, intermediate, "timebank_exchange")
}

func TestProgression_LegacyAccountGrandfathered(t *testing.T) {
	env := newTestEnv(t, nil)
	// Account with credits but no progression record: predates the
	// tier rollout.
	env.store.SeedAccount("legacy", 750)

	p, feats, err := env.prog.TierFor(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, models.TierAdvanced, p.Tier)
	assert.True(t, p.OnboardingShown)
	assert.Contains(t, feats, "timebank_balance")
}

func TestProgression_FreshAccountStaysBasic(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("fresh", 0)

	p, feats, err := env.prog.TierFor(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.TierBasic, p.Tier)
	assert.False(t, p.OnboardingShown)
	assert.NotContains(t, feats, "credits_payment")
}

func TestProgression_UnknownAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, err := env.prog.TierFor(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

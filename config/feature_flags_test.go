package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureCacheLessonCards, nil))
	assert.True(t, ff.IsEnabled(FeatureCacheTimelines, nil))
	assert.True(t, ff.IsEnabled(FeatureEventsAsyncDispatch, nil))
	assert.True(t, ff.IsEnabled(FeatureLifecycleSelfHeal, nil))

	// Cross-instance fan-out is opt-in.
	assert.False(t, ff.IsEnabled(FeatureEventsRedisBus, nil))

	// Unknown flags are always off.
	assert.False(t, ff.IsEnabled("cache.unknown", nil))
}

func TestLoadFeatureFlags_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATURE_CACHE_TIMELINES", "false")
	t.Setenv("FEATURE_EVENTS_REDIS_BUS", "true")
	t.Setenv("FEATURE_LIFECYCLE_SELF_HEAL", "50")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureCacheTimelines, nil))
	assert.True(t, ff.IsEnabled(FeatureEventsRedisBus, nil))

	selfHeal := ff.GetAllFeatures()[FeatureLifecycleSelfHeal]
	require.NotNil(t, selfHeal)
	assert.True(t, selfHeal.Enabled)
	assert.Equal(t, 50, selfHeal.RolloutPercent)
}

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_CACHE_LESSON_CARDS", featureNameToEnvKey("cache.lesson_cards"))
	assert.Equal(t, "FEATURE_EVENTS_REDIS_BUS", featureNameToEnvKey("events.redis_bus"))
}

func TestIsEnabled_RolloutBucketsAreStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureCacheTimelines, 50))

	enabled := 0
	for i := 0; i < 100; i++ {
		ctx := &FeatureContext{UserID: fmt.Sprintf("user-%d", i)}

		first := ff.IsEnabled(FeatureCacheTimelines, ctx)
		// The same user always lands in the same bucket.
		assert.Equal(t, first, ff.IsEnabled(FeatureCacheTimelines, ctx))
		if first {
			enabled++
		}
	}

	// A 50% rollout splits a reasonable user population both ways.
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 100)
}

func TestIsEnabled_UserOverrideWinsOverRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureCacheTimelines))

	ctx := &FeatureContext{UserID: "student-1"}
	assert.False(t, ff.IsEnabled(FeatureCacheTimelines, ctx))

	ff.SetUserOverride("student-1", FeatureCacheTimelines, true)
	assert.True(t, ff.IsEnabled(FeatureCacheTimelines, ctx))

	ff.ClearUserOverrides("student-1")
	assert.False(t, ff.IsEnabled(FeatureCacheTimelines, ctx))
}

func TestIsEnabled_AdminBypassesRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureEventsRedisBus, 0))

	assert.False(t, ff.IsEnabled(FeatureEventsRedisBus, &FeatureContext{UserID: "tutor-1"}))
	assert.True(t, ff.IsEnabled(FeatureEventsRedisBus, &FeatureContext{UserID: "tutor-1", IsAdmin: true}))
}

func TestIsEnabled_TimeWindow(t *testing.T) {
	ff := LoadFeatureFlags()

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	ff.mu.Lock()
	ff.features[FeatureCacheTimelines].EnabledFrom = &future
	ff.mu.Unlock()
	assert.False(t, ff.IsEnabled(FeatureCacheTimelines, nil))

	ff.mu.Lock()
	ff.features[FeatureCacheTimelines].EnabledFrom = nil
	ff.features[FeatureCacheTimelines].EnabledUntil = &past
	ff.mu.Unlock()
	assert.False(t, ff.IsEnabled(FeatureCacheTimelines, nil))
}

func TestSetRolloutPercent_Validation(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("missing.flag", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureCacheTimelines, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureCacheTimelines, -1), ErrInvalidRolloutPercent)

	require.NoError(t, ff.EnableFeature(FeatureEventsRedisBus))
	assert.True(t, ff.IsEnabled(FeatureEventsRedisBus, nil))

	require.NoError(t, ff.DisableFeature(FeatureEventsRedisBus))
	assert.False(t, ff.IsEnabled(FeatureEventsRedisBus, nil))
}

func TestGetAllFeatures_ReturnsCopies(t *testing.T) {
	ff := LoadFeatureFlags()

	features := ff.GetAllFeatures()
	features[FeatureCacheTimelines].RolloutPercent = 7

	// Mutating the snapshot must not touch the live configuration.
	assert.Equal(t, 100, ff.GetAllFeatures()[FeatureCacheTimelines].RolloutPercent)
}

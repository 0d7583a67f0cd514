package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the progress service.
// Supports gradual rollout and per-user targeting, so risky delivery
// changes (async dispatch, cross-instance fan-out) can be turned on for
// a slice of traffic first.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string
	IsAdmin bool
}

// Predefined feature flag names.
const (
	// === Event delivery ===
	FeatureDispatchAsync = "dispatch.async"  // Run event handlers off the publisher goroutine
	FeatureEventBusRedis = "eventbus.redis"  // Cross-instance fan-out over Redis pub/sub
	FeatureCatalogCache  = "catalog.cache"   // Redis read-through cache for catalog lookups

	// === Events ===
	FeatureLegacyLessonEvent = "events.lesson_completed" // Emit the legacy lesson-completed signal

	// === Achievements ===
	FeatureAchievementEvaluation = "achievements.evaluation" // Evaluate achievements on progress events
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Synchronous dispatch is the default: handlers finish before the
	// request returns, which keeps achievement evaluation reading the
	// progress state the triggering event described.
	ff.features[FeatureDispatchAsync] = &Feature{
		Name:           FeatureDispatchAsync,
		Description:    "Asynchronous event handler execution",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureEventBusRedis] = &Feature{
		Name:           FeatureEventBusRedis,
		Description:    "Publish events across instances via Redis",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureCatalogCache] = &Feature{
		Name:           FeatureCatalogCache,
		Description:    "Cache catalog parent/children lookups in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Legacy consumers still listen for the lesson-completed signal.
	ff.features[FeatureLegacyLessonEvent] = &Feature{
		Name:           FeatureLegacyLessonEvent,
		Description:    "Emit lesson-completed alongside progress-updated",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievementEvaluation] = &Feature{
		Name:           FeatureAchievementEvaluation,
		Description:    "Evaluate and award achievements on progress events",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_DISPATCH_ASYNC=true
// Example: FEATURE_EVENTBUS_REDIS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "dispatch.async" -> "FEATURE_DISPATCH_ASYNC"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// AsyncDispatchEnabled reports whether handlers run asynchronously.
// Instance-level toggle, evaluated without user context.
func (ff *FeatureFlags) AsyncDispatchEnabled() bool {
	return ff.IsEnabled(FeatureDispatchAsync, nil)
}

// RedisEventBusEnabled reports whether cross-instance fan-out is on.
func (ff *FeatureFlags) RedisEventBusEnabled() bool {
	return ff.IsEnabled(FeatureEventBusRedis, nil)
}

// CatalogCacheEnabled reports whether catalog lookups are cached.
func (ff *FeatureFlags) CatalogCacheEnabled() bool {
	return ff.IsEnabled(FeatureCatalogCache, nil)
}

// LegacyLessonEventEnabled reports whether the lesson-completed signal
// is emitted.
func (ff *FeatureFlags) LegacyLessonEventEnabled() bool {
	return ff.IsEnabled(FeatureLegacyLessonEvent, nil)
}

// AchievementEvaluationEnabled reports whether achievements are
// evaluated on progress events.
func (ff *FeatureFlags) AchievementEvaluationEnabled() bool {
	return ff.IsEnabled(FeatureAchievementEvaluation, nil)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}

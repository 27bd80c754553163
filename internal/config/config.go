// Package config provides configuration loading, validation, and lookup
// helpers for bymbot. It reads YAML through viper, applies defaults and
// environment overrides, and validates the result with struct tags.
package config

import "time"

// Location returns the engine's configured timezone, falling back to UTC when
// the name cannot be resolved. LoadConfig already rejects unknown names.
func (c *EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsBlacklisted reports whether userID is on the engine blacklist.
func (c *EngineConfig) IsBlacklisted(userID int64) bool {
	for _, id := range c.Blacklist {
		if id == userID {
			return true
		}
	}
	return false
}

// SpecialUser returns the special-user record for userID, if any.
func (c *EngineConfig) SpecialUser(userID int64) (SpecialUser, bool) {
	for _, u := range c.SpecialUsers {
		if u.ID == userID {
			return u, true
		}
	}
	return SpecialUser{}, false
}

// Enabled reports whether the named scheduler task is configured and enabled.
func (c *SchedulerConfig) Enabled(name string) bool {
	t, ok := c.Tasks[name]
	return ok && t.Enabled
}

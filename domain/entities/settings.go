package entities

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setting keys stored in the settings table
const (
	SettingEnableSync               = "enable_sync"
	SettingOverrideCooldownSpending = "override_cooldown_spending"
	SettingDepositCooldownHours     = "deposit_cooldown_hours"
	SettingSuspiciousChangeGuard    = "suspicious_change_guard"
)

// Settings is the set of runtime flags read once at the start of every tick
type Settings struct {
	EnableSync               bool
	OverrideCooldownSpending bool
	DepositCooldownHours     int
	SuspiciousChangeGuard    bool
}

// DefaultSettings returns the settings used when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		EnableSync:               true,
		OverrideCooldownSpending: false,
		DepositCooldownHours:     3,
		SuspiciousChangeGuard:    false,
	}
}

// ParseSettings overlays raw key/value rows onto defaults.
// Unparseable values are logged and fall back to the default.
func ParseSettings(raw map[string]string, defaults Settings) Settings {
	settings := defaults

	if value, ok := raw[SettingEnableSync]; ok {
		settings.EnableSync = parseBoolSetting(SettingEnableSync, value, defaults.EnableSync)
	}
	if value, ok := raw[SettingOverrideCooldownSpending]; ok {
		settings.OverrideCooldownSpending = parseBoolSetting(SettingOverrideCooldownSpending, value, defaults.OverrideCooldownSpending)
	}
	if value, ok := raw[SettingSuspiciousChangeGuard]; ok {
		settings.SuspiciousChangeGuard = parseBoolSetting(SettingSuspiciousChangeGuard, value, defaults.SuspiciousChangeGuard)
	}
	if value, ok := raw[SettingDepositCooldownHours]; ok {
		hours, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || hours <= 0 {
			log.Warnf("Invalid %s setting %q, using default %d", SettingDepositCooldownHours, value, defaults.DepositCooldownHours)
		} else {
			settings.DepositCooldownHours = hours
		}
	}

	return settings
}

// ParseBool accepts true/false, 1/0, on/off and yes/no in any case
func ParseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true, true
	case "false", "0", "off", "no":
		return false, true
	default:
		return false, false
	}
}

func parseBoolSetting(key, value string, fallback bool) bool {
	parsed, ok := ParseBool(value)
	if !ok {
		log.Warnf("Invalid %s setting %q, using default %t", key, value, fallback)
		return fallback
	}
	return parsed
}

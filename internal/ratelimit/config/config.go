package config

import (
	"time"

	platformconfig "talentgate/internal/platform/config"
	"talentgate/internal/ratelimit/models"
)

// AuthPaths are the credential-accepting endpoints held to the strict limit.
var AuthPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/signup",
	"/api/v1/auth/refresh",
	"/api/v1/auth/sso",
}

// Rules builds the rule set from configuration. A limit of zero or less
// drops the corresponding rule.
func Rules(cfg platformconfig.RateLimit) []models.Rule {
	candidates := []models.Rule{
		{
			Name:         "auth_ip_minute",
			Strategy:     models.StrategyIP,
			Limit:        cfg.AuthPerMinute,
			Window:       time.Minute,
			PathPrefixes: AuthPaths,
			Methods:      []string{"POST"},
		},
		{
			Name:     "user_minute",
			Strategy: models.StrategyUser,
			Limit:    cfg.UserPerMinute,
			Window:   time.Minute,
		},
		{
			Name:     "user_hour",
			Strategy: models.StrategyUser,
			Limit:    cfg.UserPerHour,
			Window:   time.Hour,
		},
		{
			Name:     "ip_minute",
			Strategy: models.StrategyIP,
			Limit:    cfg.IPPerMinute,
			Window:   time.Minute,
		},
	}

	rules := make([]models.Rule, 0, len(candidates))
	for _, rule := range candidates {
		if rule.Limit > 0 {
			rules = append(rules, rule)
		}
	}
	return rules
}

package models

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRuleApplies(t *testing.T) {
	rule := Rule{
		PathPrefixes: []string{"/api/v1/auth/login", "/api/v1/auth/sso"},
		Methods:      []string{http.MethodPost},
	}

	assert.True(t, rule.Applies(http.MethodPost, "/api/v1/auth/login"))
	assert.True(t, rule.Applies(http.MethodPost, "/api/v1/auth/sso/callback"))
	assert.False(t, rule.Applies(http.MethodGet, "/api/v1/auth/login"))
	assert.False(t, rule.Applies(http.MethodPost, "/api/v1/auth/me"))
	assert.True(t, Rule{}.Applies(http.MethodDelete, "/anything"))
}

func TestByStrategy(t *testing.T) {
	rules := []Rule{
		{Name: "a", Strategy: StrategyIP, Window: time.Minute},
		{Name: "b", Strategy: StrategyUser, Window: time.Minute},
		{Name: "c", Strategy: StrategyIP, Window: time.Hour},
	}

	ip := ByStrategy(rules, StrategyIP)

	assert.Len(t, ip, 2)
	assert.Equal(t, "a", ip[0].Name)
	assert.Equal(t, "c", ip[1].Name)
	assert.Empty(t, ByStrategy(rules[:1], StrategyUser))
}

package models

import (
	"slices"
	"strings"
	"time"
)

// Strategy selects what a rule counts requests against.
type Strategy string

const (
	// StrategyIP keys on the client address.
	StrategyIP Strategy = "ip"
	// StrategyUser keys on the authenticated user and falls back to the
	// client address for anonymous requests.
	StrategyUser Strategy = "user"
)

// Rule limits requests matching PathPrefixes and Methods to Limit per Window.
// Empty PathPrefixes or Methods match everything.
type Rule struct {
	Name         string
	Strategy     Strategy
	Limit        int
	Window       time.Duration
	PathPrefixes []string
	Methods      []string
}

// Applies reports whether the rule covers a request.
func (r Rule) Applies(method, path string) bool {
	if len(r.Methods) > 0 && !slices.Contains(r.Methods, method) {
		return false
	}
	if len(r.PathPrefixes) == 0 {
		return true
	}
	for _, prefix := range r.PathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

type RateLimitExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// ByStrategy returns the rules using s, preserving order.
func ByStrategy(rules []Rule, s Strategy) []Rule {
	var out []Rule
	for _, rule := range rules {
		if rule.Strategy == s {
			out = append(out, rule)
		}
	}
	return out
}

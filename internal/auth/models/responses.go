package models

import "time"

// This file contains transport-layer response models for JSON output.

// TokenResult is returned by signup, login, SSO callback and refresh.
type TokenResult struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	User         UserInfoResult `json:"user"`
}

// UserInfoResult is the public view of a user.
type UserInfoResult struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Username      string   `json:"username"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	UserType      UserType `json:"user_type"`
	EmailVerified bool     `json:"email_verified"`
}

func NewUserInfoResult(u *User) UserInfoResult {
	return UserInfoResult{
		ID:            u.ID.String(),
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		UserType:      u.UserType,
		EmailVerified: u.EmailVerified,
	}
}

// SessionSummary represents one live session for display to its owner.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"`
}

// SessionsResult lists the caller's live sessions.
type SessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

// LogoutAllResult reports how many sessions were revoked during logout-all.
type LogoutAllResult struct {
	RevokedCount int `json:"revoked_count"`
}

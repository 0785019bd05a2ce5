package models

import (
	"strings"

	s "talentgate/pkg/string"
	"talentgate/pkg/validation"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,max=72"`
	RememberMe bool   `json:"remember_me"`
}

func (r *LoginRequest) Normalize() {
	s.TrimStrings(&r.Email)
	r.Email = strings.ToLower(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email            string `json:"email" validate:"required,email,max=255"`
	Username         string `json:"username" validate:"required,min=3,max=50,username"`
	Password         string `json:"password" validate:"required,min=8,max=72"`
	FirstName        string `json:"first_name" validate:"required,notblank,max=100"`
	LastName         string `json:"last_name" validate:"required,notblank,max=100"`
	OrganizationName string `json:"organization_name,omitempty" validate:"omitempty,notblank,max=100"`
}

func (r *SignupRequest) Normalize() {
	s.TrimStrings(&r.Email, &r.Username, &r.FirstName, &r.LastName, &r.OrganizationName)
	r.Email = strings.ToLower(r.Email)
}

func (r *SignupRequest) Validate() error {
	return validation.Validate(r)
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,notblank,max=4096"`
}

func (r *RefreshRequest) Normalize() {
	s.TrimStrings(&r.RefreshToken)
}

func (r *RefreshRequest) Validate() error {
	return validation.Validate(r)
}

// SSOCallbackRequest carries an identity provider profile that an upstream
// SSO exchange has already validated.
type SSOCallbackRequest struct {
	ExternalID             string `json:"external_id" validate:"required,notblank,max=255"`
	Email                  string `json:"email" validate:"required,email,max=255"`
	FirstName              string `json:"first_name" validate:"max=100"`
	LastName               string `json:"last_name" validate:"max=100"`
	OrganizationExternalID string `json:"organization_external_id,omitempty" validate:"max=255"`
	OrganizationName       string `json:"organization_name,omitempty" validate:"max=100"`
}

func (r *SSOCallbackRequest) Normalize() {
	s.TrimStrings(&r.ExternalID, &r.Email, &r.FirstName, &r.LastName, &r.OrganizationExternalID, &r.OrganizationName)
	r.Email = strings.ToLower(r.Email)
}

func (r *SSOCallbackRequest) Validate() error {
	return validation.Validate(r)
}

// Profile converts the request into the domain profile consumed by the service.
func (r *SSOCallbackRequest) Profile() IdentityProviderProfile {
	return IdentityProviderProfile{
		ExternalID:             r.ExternalID,
		Email:                  r.Email,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		OrganizationExternalID: r.OrganizationExternalID,
		OrganizationName:       r.OrganizationName,
	}
}

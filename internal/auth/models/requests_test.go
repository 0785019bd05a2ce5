package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/validation"
)

func TestSignupRequest_Validate(t *testing.T) {
	valid := func() *SignupRequest {
		return &SignupRequest{
			Email:     "Ada@Example.com ",
			Username:  "ada",
			Password:  "Secur3Pass!",
			FirstName: "Ada",
			LastName:  "Lovelace",
		}
	}

	t.Run("normalizes email", func(t *testing.T) {
		req := valid()
		req.Normalize()
		assert.Equal(t, "ada@example.com", req.Email)
		assert.NoError(t, req.Validate())
	})

	t.Run("password above bcrypt limit rejected", func(t *testing.T) {
		req := valid()
		req.Normalize()
		req.Password = strings.Repeat("a", validation.MaxPasswordLength+1)
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("blank organization name rejected", func(t *testing.T) {
		req := valid()
		req.OrganizationName = "   "
		require.Error(t, req.Validate())
	})
}

func TestRefreshRequest_Validate(t *testing.T) {
	req := &RefreshRequest{RefreshToken: "  "}
	req.Normalize()
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh_token is required")
}

func TestSSOCallbackRequest_Profile(t *testing.T) {
	req := &SSOCallbackRequest{ExternalID: " user_01 ", Email: "ADA@EXAMPLE.COM", OrganizationExternalID: "org_9"}
	req.Normalize()
	require.NoError(t, req.Validate())

	profile := req.Profile()
	assert.Equal(t, "user_01", profile.ExternalID)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "org_9", profile.OrganizationExternalID)
}

// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "talentgate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where OrganizationID is expected.
type (
	UserID         uuid.UUID
	SessionID      uuid.UUID
	OrganizationID uuid.UUID
	ResourceID     uuid.UUID
)

// New constructors - for stores and services minting fresh identifiers.

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewSessionID() SessionID           { return SessionID(uuid.New()) }
func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewResourceID() ResourceID         { return ResourceID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, token claims, URL params).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	id, err := parseUUID(s, "organization ID")
	return OrganizationID(id), err
}

func ParseResourceID(s string) (ResourceID, error) {
	id, err := parseUUID(s, "resource ID")
	return ResourceID(id), err
}

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id ResourceID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ResourceID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}

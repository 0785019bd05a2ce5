package validation

// MaxBodySize caps JSON request bodies (64 KB).
const MaxBodySize = 64 * 1024

// Field limits shared by request DTOs and their validate tags.
const (
	MaxEmailLength    = 255
	MaxUsernameLength = 50
	MaxNameLength     = 100
	MinPasswordLength = 8
	// MaxPasswordLength matches bcrypt's input limit.
	MaxPasswordLength     = 72
	MaxRefreshTokenLength = 4096
)

package domain

import (
	"slices"
	"strings"
	"time"
)

// Supported third-party services a user can store an API key for.
const (
	ServiceOpenAI     = "openai"
	ServiceReplicate  = "replicate"
	ServiceFal        = "fal"
	ServiceStability  = "stability"
	ServiceRunway     = "runway"
	ServiceElevenLabs = "elevenlabs"
)

// SupportedServices is the space separated list used by request validation.
const SupportedServices = ServiceOpenAI + " " + ServiceReplicate + " " + ServiceFal + " " +
	ServiceStability + " " + ServiceRunway + " " + ServiceElevenLabs

// IsSupportedService reports whether service is one of SupportedServices.
func IsSupportedService(service string) bool {
	return service != "" && slices.Contains(strings.Fields(SupportedServices), service)
}

// StoredCredential is a per-user, per-service API key. APIKey holds either an
// encryption envelope or, for rows written before encryption was introduced,
// the raw key.
type StoredCredential struct {
	ID            string
	UserID        string
	Service       string
	APIKey        string
	IsEncrypted   bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeactivatedAt *time.Time
}

// CredentialView is the display form of a stored credential. The key itself
// never leaves the server unmasked.
type CredentialView struct {
	Service   string    `json:"service"`
	MaskedKey string    `json:"masked_key"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

package auth

import "strings"

// Capability names one thing a caller may do at the HTTP boundary.
type Capability string

const (
	CapabilityProductsManage       Capability = "products.manage"
	CapabilitySpecificationsManage Capability = "specifications.manage"
	CapabilityOrdersPay            Capability = "orders.pay"
)

var knownCapabilities = []Capability{
	CapabilityProductsManage,
	CapabilitySpecificationsManage,
	CapabilityOrdersPay,
}

func (c Capability) String() string { return string(c) }

// IsValid reports whether c is one of the capabilities this service checks.
func (c Capability) IsValid() bool {
	for _, known := range knownCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCapability normalizes case and whitespace before validating.
func ParseCapability(value string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(value)))
	return c, c.IsValid()
}

// Subject is the caller an authorization decision is made for.
type Subject struct {
	UserID       int64
	Email        string
	Capabilities []Capability
}

// IsAnonymous is true when no token was presented.
func (s Subject) IsAnonymous() bool {
	return s.UserID == 0
}

// Authorizer answers capability checks. Implementations must be safe for
// concurrent use.
type Authorizer interface {
	HasCapability(subject Subject, capability Capability) bool
}

// ClaimsAuthorizer grants exactly the capabilities carried in the token.
type ClaimsAuthorizer struct{}

func NewClaimsAuthorizer() ClaimsAuthorizer {
	return ClaimsAuthorizer{}
}

func (ClaimsAuthorizer) HasCapability(subject Subject, capability Capability) bool {
	if subject.IsAnonymous() || !capability.IsValid() {
		return false
	}
	for _, granted := range subject.Capabilities {
		if granted == capability {
			return true
		}
	}
	return false
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(subject Subject, capability Capability) bool

func (f AuthorizerFunc) HasCapability(subject Subject, capability Capability) bool {
	return f(subject, capability)
}

package sideshift

// Credentials holds the account secret and affiliate id.
// The secret is kept as []byte so it can be wiped on shutdown.
type Credentials struct {
	secret      []byte
	affiliateID string
}

// NewCredentials copies secret into a wipeable buffer.
func NewCredentials(secret, affiliateID string) *Credentials {
	return &Credentials{
		secret:      []byte(secret),
		affiliateID: affiliateID,
	}
}

// AffiliateID returns the affiliate id sent with quotes, shifts and checkouts.
func (c *Credentials) AffiliateID() string {
	if c == nil {
		return ""
	}
	return c.affiliateID
}

// HasSecret reports whether a secret is configured.
func (c *Credentials) HasSecret() bool {
	return c != nil && len(c.secret) > 0
}

// Wipe clears the secret from memory.
func (c *Credentials) Wipe() {
	if c == nil {
		return
	}
	for i := range c.secret {
		c.secret[i] = 0
	}
	c.secret = nil
}

// Headers returns the authentication headers. userIP is sent only when present.
func (c *Credentials) Headers(userIP *string) map[string]string {
	h := make(map[string]string, 2)
	if c.HasSecret() {
		h["x-sideshift-secret"] = string(c.secret)
	}
	if userIP != nil && *userIP != "" {
		h["x-user-ip"] = *userIP
	}
	return h
}

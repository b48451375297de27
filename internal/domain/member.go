package domain

import "time"

// DateLayout is the wire format for birth dates.
const DateLayout = "2006-01-02"

// Member is a registered end user. MemberID is generated once at
// registration and never changes.
type Member struct {
	MemberID       string        `json:"member_id" dynamodbav:"member_id"`
	IDPrefix       string        `json:"-" dynamodbav:"id_prefix"`
	FullName       string        `json:"full_name" dynamodbav:"full_name"`
	Email          string        `json:"email" dynamodbav:"email"`
	Contact        string        `json:"contact" dynamodbav:"contact"`
	BirthDate      time.Time     `json:"dob" dynamodbav:"dob"`
	LoginChallenge *OTPChallenge `json:"-" dynamodbav:"login_challenge,omitempty"`
	CreatedAt      time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time     `json:"updated" dynamodbav:"updated_at"`
}

// OTPChallenge is a pending login code. Only the bcrypt hash is stored.
type OTPChallenge struct {
	Hash      string    `dynamodbav:"hash"`
	ExpiresAt time.Time `dynamodbav:"expires_at"`
}

// Expired reports whether the challenge can no longer be answered at now.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return c == nil || now.After(c.ExpiresAt)
}

// Identity is the authenticated caller resolved by the session gate.
type Identity struct {
	MemberID string
	Email    string
	FullName string
}

// IdentityOf builds the request identity for m.
func IdentityOf(m *Member) *Identity {
	return &Identity{MemberID: m.MemberID, Email: m.Email, FullName: m.FullName}
}

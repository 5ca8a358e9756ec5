package types

// Identity is the authenticated identity string supplied by the auth collaborator.
type Identity string

// String returns the string form of the identity.
func (i Identity) String() string { return string(i) }

// SenderTag is a coarse, non-identifying category attached to outgoing hearts.
type SenderTag string

// String returns the string form of the tag.
func (t SenderTag) String() string { return string(t) }

// Fingerprint is the lowercase hex SHA-256 of a shared secret.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Short returns a display prefix that is safe to log.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Credentials carries what the auth collaborator hands us for relay calls.
type Credentials struct {
	Identity Identity `json:"identity"`
	Token    string   `json:"-"`
}

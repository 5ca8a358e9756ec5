package types

// RecoveryCapsule is a password sealed under a one-time recovery code.
type RecoveryCapsule []byte

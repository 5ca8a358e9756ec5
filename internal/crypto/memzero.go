package crypto

import "github.com/awnumar/memguard"

// Wipe zeroes b in place. Use it on secrets that never reach a LockedBuffer.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.WipeBytes(b)
}

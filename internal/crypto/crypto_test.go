package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/crypto"
	"heartx/internal/domain"
)

var fastScrypt = crypto.Params{KDF: crypto.KDFScrypt, N: 1 << 10, R: 8, P: 1}

func TestSealTo_RoundTrip(t *testing.T) {
	kp, err := crypto.GenerateX25519()
	require.NoError(t, err)

	ct, err := crypto.SealTo(kp.Public, []byte("hello"))
	require.NoError(t, err)

	pt, err := crypto.OpenWith(kp, ct)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))
}

func TestOpenWith_WrongKey(t *testing.T) {
	a, err := crypto.GenerateX25519()
	require.NoError(t, err)
	b, err := crypto.GenerateX25519()
	require.NoError(t, err)

	ct, err := crypto.SealTo(a.Public, []byte("for a"))
	require.NoError(t, err)

	_, err = crypto.OpenWith(b, ct)
	assert.ErrorIs(t, err, domain.ErrCryptoFailure)

	_, err = crypto.OpenWith(a, ct[:10])
	assert.ErrorIs(t, err, domain.ErrCryptoFailure)
}

func TestEnvelope_WrongSecretAndTamper(t *testing.T) {
	blob, err := crypto.Seal([]byte("pw"), []byte("private"), fastScrypt)
	require.NoError(t, err)

	pt, err := crypto.Open([]byte("pw"), blob)
	require.NoError(t, err)
	assert.Equal(t, "private", string(pt))

	_, err = crypto.Open([]byte("nope"), blob)
	assert.ErrorIs(t, err, crypto.ErrOpen)

	_, err = crypto.Open([]byte("pw"), []byte("{not json"))
	assert.ErrorIs(t, err, crypto.ErrOpen)

	tampered := strings.Replace(string(blob), `"v":1`, `"v":9`, 1)
	_, err = crypto.Open([]byte("pw"), []byte(tampered))
	assert.ErrorIs(t, err, crypto.ErrOpen)
}

func TestEnvelope_Argon2id(t *testing.T) {
	p := crypto.Params{KDF: crypto.KDFArgon2id, Time: 1, Memory: 1024, Threads: 1}
	blob, err := crypto.Seal([]byte("code"), []byte("pw"), p)
	require.NoError(t, err)

	pt, err := crypto.Open([]byte("code"), blob)
	require.NoError(t, err)
	assert.Equal(t, "pw", string(pt))
}

func TestSelfSealers(t *testing.T) {
	kp, err := crypto.GenerateX25519()
	require.NoError(t, err)
	other, err := crypto.GenerateX25519()
	require.NoError(t, err)

	for _, name := range []string{crypto.SelfSealRaw, crypto.SelfSealKDF} {
		t.Run(name, func(t *testing.T) {
			s := crypto.SelfSealerByName(name)
			require.NotNil(t, s)
			assert.Equal(t, name, s.Name())

			sealed, err := s.Seal(kp.Private, []byte("fp"))
			require.NoError(t, err)
			pt, err := s.Open(kp.Private, sealed)
			require.NoError(t, err)
			assert.Equal(t, "fp", string(pt))

			_, err = s.Open(other.Private, sealed)
			assert.ErrorIs(t, err, domain.ErrCryptoFailure)
		})
	}

	raw, err := crypto.RawKeySealer{}.Seal(kp.Private, []byte("fp"))
	require.NoError(t, err)
	_, err = crypto.DerivedKeySealer{}.Open(kp.Private, raw)
	assert.ErrorIs(t, err, domain.ErrCryptoFailure)

	assert.Nil(t, crypto.SelfSealerByName("rot13"))
}

func TestFingerprint_IsSHA256Hex(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		domain.Fingerprint("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"),
		crypto.Fingerprint("abc"))
}

func TestRandomString(t *testing.T) {
	s, err := crypto.RandomString(128, crypto.Alphanumeric)
	require.NoError(t, err)
	assert.Len(t, s, 128)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(crypto.Alphanumeric, r))
	}
}

func TestPublicFromPrivate(t *testing.T) {
	kp, err := crypto.GenerateX25519()
	require.NoError(t, err)
	pub, err := crypto.PublicFromPrivate(kp.Private)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, pub)
}

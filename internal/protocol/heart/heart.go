package heart

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"heartx/internal/crypto"
	"heartx/internal/domain"
)

// SecretRandomLength is the number of random characters in a shared secret.
const SecretRandomLength = 128

// separator joins the identities and the random tail of a shared secret.
const separator = "-"

// ErrInvalidIdentity is returned for empty or self-directed hearts.
var ErrInvalidIdentity = errors.New("invalid heart identity")

// Codec builds and decrypts heart records.
type Codec struct {
	sealer crypto.SelfSealer
}

// New returns a Codec using sealer for self-signatures; nil selects the raw-key sealer.
func New(sealer crypto.SelfSealer) *Codec {
	if sealer == nil {
		sealer = crypto.RawKeySealer{}
	}
	return &Codec{sealer: sealer}
}

// Sealer returns the self-signature primitive in use.
func (c *Codec) Sealer() crypto.SelfSealer { return c.sealer }

// Build creates a heart from selfID to counterpartID.
//
// A zero counterpartPub yields domain.ErrNeedsKeyFetch.
func (c *Codec) Build(
	selfID, counterpartID domain.Identity,
	self domain.KeyPair,
	counterpartPub domain.X25519Public,
) (domain.HeartRecord, error) {
	if selfID == "" || counterpartID == "" || selfID == counterpartID {
		return domain.HeartRecord{}, ErrInvalidIdentity
	}
	if counterpartPub.IsZero() {
		return domain.HeartRecord{}, errors.Wrapf(domain.ErrNeedsKeyFetch, "heart to %s", counterpartID)
	}

	secret, err := newSharedSecret(selfID, counterpartID)
	if err != nil {
		return domain.HeartRecord{}, errors.Wrap(err, "shared secret")
	}
	fp := crypto.Fingerprint(secret)

	selfRecord, err := crypto.SealTo(self.Public, []byte(secret))
	if err != nil {
		return domain.HeartRecord{}, errors.Wrap(err, "self record")
	}
	selfSig, err := c.sealer.Seal(self.Private, []byte(fp))
	if err != nil {
		return domain.HeartRecord{}, errors.Wrap(err, "self signature")
	}
	payload, err := crypto.SealTo(counterpartPub, []byte(fp))
	if err != nil {
		return domain.HeartRecord{}, errors.Wrap(err, "counterpart payload")
	}

	return domain.HeartRecord{
		SharedSecret:       secret,
		Fingerprint:        fp,
		SelfRecord:         selfRecord,
		SelfSignature:      selfSig,
		CounterpartPayload: payload,
	}, nil
}

// BuildEntry builds the stored slot entry and the outbound heart for target,
// or returns nils for an empty slot.
func (c *Codec) BuildEntry(
	selfID domain.Identity,
	self domain.KeyPair,
	target domain.Identity,
	targetPub domain.X25519Public,
) (*domain.SlotEntry, *domain.OutboundHeart, error) {
	if target == "" {
		return nil, nil, nil
	}
	rec, err := c.Build(selfID, target, self, targetPub)
	if err != nil {
		return nil, nil, err
	}
	return rec.Entry(), rec.Outbound(), nil
}

// DecryptInbox opens an inbox item addressed to self and returns its fingerprint.
func (c *Codec) DecryptInbox(item domain.InboxItem, self domain.KeyPair) (domain.Fingerprint, error) {
	return openFingerprint(self, item.Payload)
}

// DecryptReturn opens a return candidate addressed to self.
func (c *Codec) DecryptReturn(rc domain.ReturnCandidate, self domain.KeyPair) (domain.Fingerprint, error) {
	return openFingerprint(self, rc.Payload)
}

// OpenSelfSignature recovers the comparison fingerprint of one of our own sent hearts.
func (c *Codec) OpenSelfSignature(sent domain.SlotEntry, self domain.KeyPair) (domain.Fingerprint, error) {
	pt, err := c.sealer.Open(self.Private, sent.SelfSignature)
	if err != nil {
		return "", domain.ErrCryptoFailure
	}
	fp := domain.Fingerprint(pt)
	if !validFingerprint(fp) {
		return "", domain.ErrCryptoFailure
	}
	return fp, nil
}

// OpenSelfRecord recovers the shared secret of one of our own sent hearts.
func (c *Codec) OpenSelfRecord(sent domain.SlotEntry, self domain.KeyPair) (string, error) {
	pt, err := crypto.OpenWith(self, sent.SelfRecord)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// ReturnFor re-encrypts a claimed fingerprint toward one of our targets.
func (c *Codec) ReturnFor(
	fp domain.Fingerprint,
	targetPub domain.X25519Public,
	aux string,
) (domain.ReturnEntry, error) {
	if targetPub.IsZero() {
		return domain.ReturnEntry{}, domain.ErrNeedsKeyFetch
	}
	payload, err := crypto.SealTo(targetPub, []byte(fp))
	if err != nil {
		return domain.ReturnEntry{}, errors.Wrap(err, "return payload")
	}
	return domain.ReturnEntry{Fingerprint: fp, Payload: payload, Aux: aux}, nil
}

// Counterpart extracts the other identity from a shared secret built by or for selfID.
func Counterpart(secret string, selfID domain.Identity) (domain.Identity, error) {
	if len(secret) <= SecretRandomLength+len(separator) {
		return "", domain.ErrCryptoFailure
	}
	pair := secret[:len(secret)-SecretRandomLength-len(separator)]
	self := string(selfID)

	if rest, ok := strings.CutPrefix(pair, self+separator); ok && rest >= self && rest != "" {
		return domain.Identity(rest), nil
	}
	if rest, ok := strings.CutSuffix(pair, separator+self); ok && rest <= self && rest != "" {
		return domain.Identity(rest), nil
	}
	return "", domain.ErrCryptoFailure
}

func newSharedSecret(x, y domain.Identity) (string, error) {
	a, b := x, y
	if b < a {
		a, b = b, a
	}
	tail, err := crypto.RandomString(SecretRandomLength, crypto.Alphanumeric)
	if err != nil {
		return "", err
	}
	return string(a) + separator + string(b) + separator + tail, nil
}

func openFingerprint(self domain.KeyPair, payload []byte) (domain.Fingerprint, error) {
	pt, err := crypto.OpenWith(self, payload)
	if err != nil {
		return "", err
	}
	fp := domain.Fingerprint(pt)
	if !validFingerprint(fp) {
		return "", domain.ErrCryptoFailure
	}
	return fp, nil
}

func validFingerprint(fp domain.Fingerprint) bool {
	if len(fp) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(fp))
	return err == nil && strings.ToLower(string(fp)) == string(fp)
}

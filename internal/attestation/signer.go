package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidKey = errors.New("invalid signing key")

// Signer signs attestation statements with an ed25519 key.
type Signer struct {
	priv ed25519.PrivateKey
	pub  string
}

// NewSigner derives the key from a hex-encoded 32-byte seed. An empty seed
// generates a fresh key that lives as long as the process.
func NewSigner(seedHex string) (*Signer, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	var priv ed25519.PrivateKey
	if seedHex == "" {
		_, k, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		priv = k
	} else {
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: want %d hex-encoded bytes", ErrInvalidKey, ed25519.SeedSize)
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{priv: priv, pub: hex.EncodeToString(pub)}, nil
}

// PublicKeyHex returns the raw public key, hex encoded.
func (s *Signer) PublicKeyHex() string {
	return s.pub
}

// Sign stamps st with the signer key and its signature.
func (s *Signer) Sign(st Statement) (Statement, error) {
	st.SignerPubKey = s.pub
	msg, err := st.Canonical()
	if err != nil {
		return Statement{}, err
	}
	st.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, msg))
	return st, nil
}

// VerifyStatement checks the signature of st against its embedded public key.
func VerifyStatement(st Statement) bool {
	pub, err := hex.DecodeString(st.SignerPubKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(st.Signature)
	if err != nil {
		return false
	}
	msg, err := st.Canonical()
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// Canonical is the byte sequence that gets signed: the JSON encoding of the
// statement without its signature.
func (st Statement) Canonical() ([]byte, error) {
	st.Signature = ""
	return json.Marshal(st)
}

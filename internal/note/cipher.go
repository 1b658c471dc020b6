package note

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"github.com/duststealth/core/internal/field"
)

// Errors returned by NoteCipher.
var (
	ErrAuthTagMismatch = errors.New("note: authentication tag mismatch")
	ErrCryptoFailure   = errors.New("note: host crypto subsystem unavailable")
)

const hkdfInfo = "dust-note-storage-key-v1"

// notePayload is the stable canonical serialization of an encrypted note:
// owner, amount, asset, and blinding as hex strings. ChainID is not part of
// the encrypted payload — it is carried alongside the ciphertext in plain
// storage fields.
type notePayload struct {
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	Asset    string `json:"asset"`
	Blinding string `json:"blinding"`
}

// Cipher encrypts/decrypts note payloads at rest with AES-256-GCM, using a
// key derived from the wallet's spending key.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives a 32-byte AES-256 key from the spending key's canonical
// bytes via HKDF-SHA256 and constructs the AEAD.
func NewCipher(spendingKey *big.Int) (*Cipher, error) {
	secret := spendingKey.Bytes()
	kdf := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, ErrCryptoFailure
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return &Cipher{gcm: gcm}, nil
}

// Encrypt serializes n's sensitive fields to the canonical payload and seals
// it with a freshly sampled 12-byte IV and empty associated data. Each call
// produces a fresh IV, so identical payloads yield distinct ciphertexts with
// overwhelming probability.
func (c *Cipher) Encrypt(n Note) (ciphertext, iv []byte, err error) {
	payload := notePayload{
		Owner:    field.ToBytes32Hex(n.Owner),
		Amount:   field.ToBytes32Hex(n.Amount),
		Asset:    field.ToBytes32Hex(n.Asset),
		Blinding: field.ToBytes32Hex(n.Blinding),
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, ErrCryptoFailure
	}

	ciphertext = c.gcm.Seal(nil, iv, plaintext, nil)
	return ciphertext, iv, nil
}

// Decrypt opens a ciphertext produced by Encrypt and reconstructs the
// owner/amount/asset/blinding fields (ChainID is not recoverable from the
// payload and must be supplied by the caller from plaintext storage).
func (c *Cipher) Decrypt(ciphertext, iv []byte) (owner, amount, asset, blinding field.Elem, err error) {
	plaintext, err := c.gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, nil, nil, nil, ErrAuthTagMismatch
	}

	var payload notePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, nil, nil, nil, ErrAuthTagMismatch
	}

	// The decryption adaptor boundary is the single place where empty-as-zero
	// hex decoding is tolerated here: fields are blank only
	// before a successful decrypt, never after.
	if owner, err = field.FromBytes32Hex(payload.Owner); err != nil {
		return nil, nil, nil, nil, err
	}
	if amount, err = field.FromBytes32Hex(payload.Amount); err != nil {
		return nil, nil, nil, nil, err
	}
	if asset, err = field.FromBytes32Hex(payload.Asset); err != nil {
		return nil, nil, nil, nil, err
	}
	if blinding, err = field.FromBytes32Hex(payload.Blinding); err != nil {
		return nil, nil, nil, nil, err
	}
	return owner, amount, asset, blinding, nil
}

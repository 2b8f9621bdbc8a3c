// Package envelope provides the key material types and the encryption
// capability used to perform envelope encryption of vault items.
//
// Envelope encryption is the process of setting up an encryption chain, where
// keys are encrypted with other keys higher up the chain. In a vault every
// item is encrypted with its own randomly generated key, and that key is in
// turn encrypted with the vault key. The vault key itself may be wrapped by a
// KeyWrapper (for example a KMS CMK) for escrow or recovery.
//
// Nothing above this package knows which cipher is in use. Callers depend on
// the Encryptor interface and receive keys and ciphertexts that are tagged with
// the Algorithm that produced them.
package envelope

import "github.com/pkg/errors"

// Algorithm identifies a cipher suite. Every key and ciphertext is tagged with
// one so that a key is never used with an algorithm it wasn't generated for.
type Algorithm string

const (
	// XSalsa20Poly1305 is NaCl secretbox/box with 256 bit keys.
	XSalsa20Poly1305 Algorithm = "xSalsa20Poly1305"
)

var (
	// ErrAuthentication is returned when a ciphertext fails its integrity
	// check: the wrong key was used, or the data was corrupted or tampered
	// with.
	ErrAuthentication = errors.New("envelope: message authentication failed")

	// ErrInvalidKey is returned when key material has the wrong length for
	// its algorithm.
	ErrInvalidKey = errors.New("envelope: invalid key")

	// ErrAlgorithmMismatch is returned when a key tagged with one algorithm
	// is handed to an Encryptor for another.
	ErrAlgorithmMismatch = errors.New("envelope: key algorithm does not match encryptor")
)

// EncryptionKey is secret key material, e.g. the vault key or an individual
// item's key.
type EncryptionKey struct {
	// Some encryption algorithms are picky about key lengths, so the key is
	// tagged with the algorithm it was generated for.
	Algorithm Algorithm `json:"algorithm"`
	Key       []byte    `json:"key"`
}

// Clone returns a copy of k that shares no memory with it.
func (k EncryptionKey) Clone() EncryptionKey {
	return EncryptionKey{Algorithm: k.Algorithm, Key: cloneBytes(k.Key)}
}

// KeyPair is a public/private key pair. Both halves carry the same algorithm.
type KeyPair struct {
	PublicKey  EncryptionKey `json:"publicKey"`
	PrivateKey EncryptionKey `json:"privateKey"`
}

// EncryptedData is the output of a single encryption call. The nonce and
// ciphertext always travel together.
type EncryptedData struct {
	Nonce      []byte `json:"nonce"`
	CipherText []byte `json:"cipherText"`
}

// Clone returns a copy of d that shares no memory with it.
func (d EncryptedData) Clone() EncryptedData {
	return EncryptedData{Nonce: cloneBytes(d.Nonce), CipherText: cloneBytes(d.CipherText)}
}

// Encryptor encapsulates an encryption and HMAC strategy, e.g.
// xsalsa20-poly1305.
//
// Since encryption algorithms are often coupled to key generation and key
// lengths, the methods to generate appropriate keys are part of the interface.
// Implementations must be safe for concurrent use.
type Encryptor interface {
	// Algorithm is the tag attached to every key this Encryptor generates.
	Algorithm() Algorithm

	// GenerateEncryptionKey generates a random symmetric key.
	GenerateEncryptionKey() (EncryptionKey, error)

	// GenerateKeyPair generates an asymmetric key pair.
	GenerateKeyPair() (KeyPair, error)

	// Encrypt encrypts message under key with a freshly generated nonce.
	Encrypt(message []byte, key EncryptionKey) (*EncryptedData, error)

	// EncryptWithNonce encrypts message under key with the given nonce. It
	// exists for known-answer tests; never reuse a nonce with the same key.
	EncryptWithNonce(message, nonce []byte, key EncryptionKey) (*EncryptedData, error)

	// Decrypt returns ErrAuthentication if the ciphertext fails its
	// integrity check. It never returns partial plaintext.
	Decrypt(cipherText, nonce []byte, key EncryptionKey) ([]byte, error)

	AsymmetricEncrypt(message []byte, theirPublicKey, myPrivateKey EncryptionKey) (*EncryptedData, error)
	AsymmetricDecrypt(cipherText, nonce []byte, theirPublicKey, myPrivateKey EncryptionKey) ([]byte, error)

	// ConstantTimeEquals compares MACs. Never compare them with bytes.Equal.
	ConstantTimeEquals(a, b []byte) bool

	// HMAC computes a keyed MAC of message.
	HMAC(message []byte, key EncryptionKey) ([]byte, error)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

package envelope

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/auth"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// NaClEncryptor is an Encryptor backed by NaCl: secretbox for symmetric
// encryption, box for asymmetric encryption and auth (HMAC-SHA-512-256) for
// MACs. Nonces are 192 bits and randomly generated, which gives a
// sufficiently small probability of repeats.
type NaClEncryptor struct {
	// Rand is the source of randomness for keys and nonces. Defaults to
	// crypto/rand.Reader.
	Rand io.Reader
}

// NewNaClEncryptor returns a NaClEncryptor reading from crypto/rand.
func NewNaClEncryptor() *NaClEncryptor {
	return &NaClEncryptor{Rand: rand.Reader}
}

func (c *NaClEncryptor) Algorithm() Algorithm {
	return XSalsa20Poly1305
}

// GenerateEncryptionKey generates a secure 256 bit random key.
func (c *NaClEncryptor) GenerateEncryptionKey() (EncryptionKey, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(c.random(), key); err != nil {
		return EncryptionKey{}, errors.Wrap(err, "generating key")
	}
	return EncryptionKey{Algorithm: XSalsa20Poly1305, Key: key}, nil
}

// GenerateKeyPair generates a curve25519 key pair for use with box.
func (c *NaClEncryptor) GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(c.random())
	if err != nil {
		return KeyPair{}, errors.Wrap(err, "generating key pair")
	}
	return KeyPair{
		PublicKey:  EncryptionKey{Algorithm: XSalsa20Poly1305, Key: pub[:]},
		PrivateKey: EncryptionKey{Algorithm: XSalsa20Poly1305, Key: priv[:]},
	}, nil
}

// Encrypt seals message with secretbox under a fresh random nonce.
func (c *NaClEncryptor) Encrypt(message []byte, key EncryptionKey) (*EncryptedData, error) {
	nonce, err := c.nonce()
	if err != nil {
		return nil, err
	}
	return c.EncryptWithNonce(message, nonce[:], key)
}

func (c *NaClEncryptor) EncryptWithNonce(message, nonce []byte, key EncryptionKey) (*EncryptedData, error) {
	k, err := secretKey(key)
	if err != nil {
		return nil, err
	}
	n, err := toNonce(nonce)
	if err != nil {
		return nil, err
	}
	return &EncryptedData{
		Nonce:      n[:],
		CipherText: secretbox.Seal(nil, message, n, k),
	}, nil
}

func (c *NaClEncryptor) Decrypt(cipherText, nonce []byte, key EncryptionKey) ([]byte, error) {
	k, err := secretKey(key)
	if err != nil {
		return nil, err
	}
	n, err := toNonce(nonce)
	if err != nil {
		return nil, ErrAuthentication
	}
	plaintext, ok := secretbox.Open(nil, cipherText, n, k)
	if !ok {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// AsymmetricEncrypt seals message with box so that only the holder of the
// private key matching theirPublicKey can open it.
func (c *NaClEncryptor) AsymmetricEncrypt(message []byte, theirPublicKey, myPrivateKey EncryptionKey) (*EncryptedData, error) {
	pub, err := secretKey(theirPublicKey)
	if err != nil {
		return nil, err
	}
	priv, err := secretKey(myPrivateKey)
	if err != nil {
		return nil, err
	}
	nonce, err := c.nonce()
	if err != nil {
		return nil, err
	}
	return &EncryptedData{
		Nonce:      nonce[:],
		CipherText: box.Seal(nil, message, nonce, pub, priv),
	}, nil
}

func (c *NaClEncryptor) AsymmetricDecrypt(cipherText, nonce []byte, theirPublicKey, myPrivateKey EncryptionKey) ([]byte, error) {
	pub, err := secretKey(theirPublicKey)
	if err != nil {
		return nil, err
	}
	priv, err := secretKey(myPrivateKey)
	if err != nil {
		return nil, err
	}
	n, err := toNonce(nonce)
	if err != nil {
		return nil, ErrAuthentication
	}
	plaintext, ok := box.Open(nil, cipherText, n, pub, priv)
	if !ok {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func (c *NaClEncryptor) ConstantTimeEquals(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// HMAC authenticates message with nacl/auth under key.
func (c *NaClEncryptor) HMAC(message []byte, key EncryptionKey) ([]byte, error) {
	k, err := secretKey(key)
	if err != nil {
		return nil, err
	}
	sum := auth.Sum(message, k)
	return sum[:], nil
}

func (c *NaClEncryptor) random() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c *NaClEncryptor) nonce() (*[nonceSize]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(c.random(), nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generating nonce")
	}
	return &nonce, nil
}

func secretKey(key EncryptionKey) (*[keySize]byte, error) {
	if key.Algorithm != XSalsa20Poly1305 {
		return nil, errors.Wrapf(ErrAlgorithmMismatch, "got %q", key.Algorithm)
	}
	if len(key.Key) != keySize {
		return nil, errors.Wrapf(ErrInvalidKey, "expected %d bytes, got %d", keySize, len(key.Key))
	}
	var k [keySize]byte
	copy(k[:], key.Key)
	return &k, nil
}

func toNonce(b []byte) (*[nonceSize]byte, error) {
	if len(b) != nonceSize {
		return nil, errors.Errorf("envelope: expected %d byte nonce, got %d", nonceSize, len(b))
	}
	var n [nonceSize]byte
	copy(n[:], b)
	return &n, nil
}

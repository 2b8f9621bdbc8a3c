package envelope

import (
	"bytes"
	"crypto/subtle"
	"sync"

	"github.com/pkg/errors"
)

// StubEncryptor is a deterministic Encryptor for unit tests of code that sits
// above the capability. It does NOT provide any confidentiality: the
// "ciphertext" is the plaintext followed by the key bytes.
//
// The zero value behaves like NewStubEncryptor.
type StubEncryptor struct {
	mu                     sync.RWMutex
	badKeys                map[string]bool
	encryptionKeyGenerator func() []byte
	hmacGenerator          func(message []byte, key EncryptionKey) []byte
}

// NewStubEncryptor returns a StubEncryptor that generates the key
// "encryption-key-123" and the MAC "hmac-123".
func NewStubEncryptor() *StubEncryptor {
	return &StubEncryptor{
		badKeys:                make(map[string]bool),
		encryptionKeyGenerator: defaultStubKey,
		hmacGenerator:          defaultStubHMAC,
	}
}

// WithEncryptionKeyGenerator replaces the key generator.
func (s *StubEncryptor) WithEncryptionKeyGenerator(f func() []byte) *StubEncryptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptionKeyGenerator = f
	return s
}

// WithHMACGenerator replaces the MAC function.
func (s *StubEncryptor) WithHMACGenerator(f func(message []byte, key EncryptionKey) []byte) *StubEncryptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hmacGenerator = f
	return s
}

// FailOnKey makes every operation using key fail.
func (s *StubEncryptor) FailOnKey(key EncryptionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.badKeys == nil {
		s.badKeys = make(map[string]bool)
	}
	s.badKeys[string(key.Key)] = true
}

func (s *StubEncryptor) Algorithm() Algorithm {
	return XSalsa20Poly1305
}

func (s *StubEncryptor) GenerateEncryptionKey() (EncryptionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.encryptionKeyGenerator == nil {
		return EncryptionKey{Algorithm: XSalsa20Poly1305, Key: defaultStubKey()}, nil
	}
	return EncryptionKey{Algorithm: XSalsa20Poly1305, Key: s.encryptionKeyGenerator()}, nil
}

func (s *StubEncryptor) GenerateKeyPair() (KeyPair, error) {
	return KeyPair{
		PublicKey:  EncryptionKey{Algorithm: XSalsa20Poly1305, Key: []byte("public-123")},
		PrivateKey: EncryptionKey{Algorithm: XSalsa20Poly1305, Key: []byte("private-123")},
	}, nil
}

func (s *StubEncryptor) Encrypt(message []byte, key EncryptionKey) (*EncryptedData, error) {
	return s.EncryptWithNonce(message, []byte("nonce-123"), key)
}

func (s *StubEncryptor) EncryptWithNonce(message, nonce []byte, key EncryptionKey) (*EncryptedData, error) {
	if s.isBad(key) {
		return nil, errors.New("envelope: bad encryption key used")
	}
	return &EncryptedData{
		Nonce:      cloneBytes(nonce),
		CipherText: seal(message, key.Key),
	}, nil
}

func (s *StubEncryptor) Decrypt(cipherText, nonce []byte, key EncryptionKey) ([]byte, error) {
	if s.isBad(key) {
		return nil, ErrAuthentication
	}
	return open(cipherText, key.Key)
}

func (s *StubEncryptor) AsymmetricEncrypt(message []byte, theirPublicKey, myPrivateKey EncryptionKey) (*EncryptedData, error) {
	if s.isBad(myPrivateKey) {
		return nil, errors.New("envelope: bad encryption key used")
	}
	return &EncryptedData{
		Nonce:      []byte("nonce-123"),
		CipherText: seal(message, pairTag(theirPublicKey, myPrivateKey)),
	}, nil
}

// AsymmetricDecrypt strips the key pair tag. The recipient opens with the
// sender's public key, which the stub has no way to relate to the tag.
func (s *StubEncryptor) AsymmetricDecrypt(cipherText, nonce []byte, theirPublicKey, myPrivateKey EncryptionKey) ([]byte, error) {
	if s.isBad(myPrivateKey) {
		return nil, ErrAuthentication
	}
	i := bytes.LastIndexByte(cipherText, '|')
	if i < 0 {
		return nil, ErrAuthentication
	}
	return cloneBytes(cipherText[:i]), nil
}

func (s *StubEncryptor) ConstantTimeEquals(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func (s *StubEncryptor) HMAC(message []byte, key EncryptionKey) ([]byte, error) {
	if s.isBad(key) {
		return nil, errors.New("envelope: bad hmac key used")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hmacGenerator == nil {
		return defaultStubHMAC(message, key), nil
	}
	return s.hmacGenerator(message, key), nil
}

func (s *StubEncryptor) isBad(key EncryptionKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.badKeys[string(key.Key)]
}

func defaultStubKey() []byte { return []byte("encryption-key-123") }

func defaultStubHMAC([]byte, EncryptionKey) []byte { return []byte("hmac-123") }

// seal lays out message|tag.
func seal(message, tag []byte) []byte {
	out := make([]byte, 0, len(message)+1+len(tag))
	out = append(out, message...)
	out = append(out, '|')
	return append(out, tag...)
}

func open(cipherText, tag []byte) ([]byte, error) {
	suffix := append([]byte{'|'}, tag...)
	if !bytes.HasSuffix(cipherText, suffix) {
		return nil, ErrAuthentication
	}
	return cloneBytes(cipherText[:len(cipherText)-len(suffix)]), nil
}

func pairTag(pub, priv EncryptionKey) []byte {
	return append(append(cloneBytes(pub.Key), ':'), priv.Key...)
}

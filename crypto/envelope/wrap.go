package envelope

import (
	"context"

	"github.com/pkg/errors"
)

// WrappedKey is an EncryptionKey encrypted by a KeyWrapper. It is safe to
// persist or escrow.
type WrappedKey struct {
	// Algorithm of the wrapped key, needed to rebuild the EncryptionKey.
	Algorithm  Algorithm `json:"algorithm"`
	CipherText []byte    `json:"cipherText"`
	// Nonce is empty for wrappers, like KMS, that manage their own.
	Nonce []byte `json:"nonce,omitempty"`
}

// KeyWrapper protects a vault key with a key encryption key (KEK) higher up
// the chain. Implementations never expose the KEK itself.
type KeyWrapper interface {
	// GenerateKey generates a new key and returns it along with its
	// wrapped form.
	GenerateKey(ctx context.Context) (EncryptionKey, *WrappedKey, error)
	WrapKey(ctx context.Context, key EncryptionKey) (*WrappedKey, error)
	UnwrapKey(ctx context.Context, wrapped *WrappedKey) (EncryptionKey, error)
}

// EncryptorKeyWrapper wraps keys with an Encryptor under a local KEK, e.g. a
// key printed on a recovery sheet.
type EncryptorKeyWrapper struct {
	encryptor Encryptor
	kek       EncryptionKey
}

func NewEncryptorKeyWrapper(e Encryptor, kek EncryptionKey) *EncryptorKeyWrapper {
	return &EncryptorKeyWrapper{encryptor: e, kek: kek}
}

// GenerateKey generates a key with the underlying Encryptor and wraps it.
func (w *EncryptorKeyWrapper) GenerateKey(ctx context.Context) (EncryptionKey, *WrappedKey, error) {
	key, err := w.encryptor.GenerateEncryptionKey()
	if err != nil {
		return EncryptionKey{}, nil, err
	}
	wrapped, err := w.WrapKey(ctx, key)
	if err != nil {
		return EncryptionKey{}, nil, err
	}
	return key, wrapped, nil
}

func (w *EncryptorKeyWrapper) WrapKey(ctx context.Context, key EncryptionKey) (*WrappedKey, error) {
	ed, err := w.encryptor.Encrypt(key.Key, w.kek)
	if err != nil {
		return nil, errors.Wrap(err, "wrapping key")
	}
	return &WrappedKey{Algorithm: key.Algorithm, CipherText: ed.CipherText, Nonce: ed.Nonce}, nil
}

func (w *EncryptorKeyWrapper) UnwrapKey(ctx context.Context, wrapped *WrappedKey) (EncryptionKey, error) {
	key, err := w.encryptor.Decrypt(wrapped.CipherText, wrapped.Nonce, w.kek)
	if err != nil {
		return EncryptionKey{}, errors.Wrap(err, "unwrapping key")
	}
	return EncryptionKey{Algorithm: wrapped.Algorithm, Key: key}, nil
}

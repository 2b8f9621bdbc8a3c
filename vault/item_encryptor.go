package vault

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/jcarver989/lockbox/canonical"
	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/jcarver989/lockbox/metrics"
	"github.com/pkg/errors"
)

// ItemEncryptor uses an envelope.Encryptor to encrypt and decrypt vault items
// and their keys, and to compute the digest of a collection of items.
//
// Each item should be encrypted with its own randomly generated key. Each
// item key is encrypted with the vault key.
type ItemEncryptor[T any] struct {
	encryptor envelope.Encryptor
	clock     clock.Clock
}

// ItemEncryptorOption configures an ItemEncryptor.
type ItemEncryptorOption func(*itemEncryptorOptions)

type itemEncryptorOptions struct {
	clock clock.Clock
}

// WithItemClock sets the clock used to timestamp collections. Defaults to the
// wall clock.
func WithItemClock(c clock.Clock) ItemEncryptorOption {
	return func(o *itemEncryptorOptions) {
		o.clock = c
	}
}

// NewItemEncryptor returns an ItemEncryptor backed by e. A nil e means a
// NaClEncryptor.
func NewItemEncryptor[T any](e envelope.Encryptor, opts ...ItemEncryptorOption) *ItemEncryptor[T] {
	if e == nil {
		e = envelope.NewNaClEncryptor()
	}
	o := itemEncryptorOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return &ItemEncryptor[T]{encryptor: e, clock: o.clock}
}

// Encryptor returns the underlying capability.
func (e *ItemEncryptor[T]) Encryptor() envelope.Encryptor {
	return e.encryptor
}

// GenerateEncryptionKey generates a vault or item key.
func (e *ItemEncryptor[T]) GenerateEncryptionKey() (envelope.EncryptionKey, error) {
	return e.encryptor.GenerateEncryptionKey()
}

// GenerateKeyPair generates a key pair for sharing item keys.
func (e *ItemEncryptor[T]) GenerateKeyPair() (envelope.KeyPair, error) {
	return e.encryptor.GenerateKeyPair()
}

// Encrypt encrypts item.Data under the item's key, and the item's key under
// vaultKey.
func (e *ItemEncryptor[T]) Encrypt(item VaultItem[T], vaultKey envelope.EncryptionKey) (*EncryptedVaultItem, error) {
	data, err := canonical.Marshal(item.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: encoding item %s", item.ID)
	}

	encryptedData, err := e.encryptor.Encrypt(data, item.EncryptionKey)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: encrypting item %s", item.ID)
	}

	encryptedKey, err := e.encryptKey(item.EncryptionKey, vaultKey)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: encrypting key of item %s", item.ID)
	}

	return &EncryptedVaultItem{
		ID:            item.ID,
		EncryptedKey:  *encryptedKey,
		EncryptedData: *encryptedData,
	}, nil
}

// Decrypt recovers the item's key with vaultKey, then the item's data with
// the item's key. A failed integrity check on either step returns an error
// wrapping envelope.ErrAuthentication.
func (e *ItemEncryptor[T]) Decrypt(item EncryptedVaultItem, vaultKey envelope.EncryptionKey) (*VaultItem[T], error) {
	keyBytes, err := e.encryptor.Decrypt(item.EncryptedKey.CipherText, item.EncryptedKey.Nonce, vaultKey)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: decrypting key of item %s", item.ID)
	}

	itemKey, err := parseKey(keyBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: item %s", item.ID)
	}

	data, err := e.encryptor.Decrypt(item.EncryptedData.CipherText, item.EncryptedData.Nonce, itemKey)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: decrypting item %s", item.ID)
	}

	decrypted := &VaultItem[T]{ID: item.ID, EncryptionKey: itemKey}
	if err := json.Unmarshal(data, &decrypted.Data); err != nil {
		return nil, errors.Wrapf(err, "vault: decoding item %s", item.ID)
	}
	return decrypted, nil
}

// SignedItems is an encrypted collection along with its digest.
type SignedItems struct {
	EncryptedItems []EncryptedVaultItem
	// Timestamp is in milliseconds since the epoch.
	Timestamp int64
	HMAC      []byte
}

// EncryptItemsWithHMAC encrypts items, keeping their order, and signs the
// result with the current time.
func (e *ItemEncryptor[T]) EncryptItemsWithHMAC(items []VaultItem[T], vaultKey envelope.EncryptionKey) (*SignedItems, error) {
	encrypted := make([]EncryptedVaultItem, 0, len(items))
	for _, item := range items {
		ei, err := e.Encrypt(item, vaultKey)
		if err != nil {
			return nil, err
		}
		encrypted = append(encrypted, *ei)
	}

	timestamp := e.clock.Now().UnixMilli()
	hmac, err := e.Digest(encrypted, vaultKey, timestamp)
	if err != nil {
		return nil, err
	}

	return &SignedItems{
		EncryptedItems: encrypted,
		Timestamp:      timestamp,
		HMAC:           hmac,
	}, nil
}

// DecryptItemsWithHMAC verifies hmac against items and timestamp, and only
// then decrypts the items. It returns ErrMissingIntegrityFields if either
// timestamp or hmac is missing and ErrIntegrity if they don't match. If any
// item fails to decrypt, no items are returned.
func (e *ItemEncryptor[T]) DecryptItemsWithHMAC(items []EncryptedVaultItem, vaultKey envelope.EncryptionKey, timestamp *int64, hmac []byte) ([]VaultItem[T], error) {
	if timestamp == nil || hmac == nil {
		return nil, ErrMissingIntegrityFields
	}

	expected, err := e.Digest(items, vaultKey, *timestamp)
	if err != nil {
		return nil, err
	}
	if !e.encryptor.ConstantTimeEquals(hmac, expected) {
		return nil, ErrIntegrity
	}

	decrypted := make([]VaultItem[T], 0, len(items))
	for _, item := range items {
		di, err := e.Decrypt(item, vaultKey)
		if err != nil {
			return nil, err
		}
		decrypted = append(decrypted, *di)
	}
	return decrypted, nil
}

// digestPayload is the MAC input for a collection. numberOfItems catches
// truncation of whole items.
type digestPayload struct {
	Items         []EncryptedVaultItem `json:"items"`
	NumberOfItems int                  `json:"numberOfItems"`
	LastModified  int64                `json:"lastModified"`
}

// Digest computes the keyed digest of items at timestamp. The order of items
// doesn't matter.
func (e *ItemEncryptor[T]) Digest(items []EncryptedVaultItem, vaultKey envelope.EncryptionKey, timestamp int64) ([]byte, error) {
	t := metrics.Time("vault.digest", map[string]string{"items": strconv.Itoa(len(items))}, 1.0)
	defer t.Done()

	sorted := make([]EncryptedVaultItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	message, err := canonical.Marshal(digestPayload{
		Items:         sorted,
		NumberOfItems: len(sorted),
		LastModified:  timestamp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vault: encoding digest payload")
	}

	hmac, err := e.encryptor.HMAC(message, vaultKey)
	if err != nil {
		return nil, errors.Wrap(err, "vault: computing digest")
	}
	return hmac, nil
}

// encryptKey encrypts the descriptor of key, not just its bytes, so the
// algorithm survives the round trip.
func (e *ItemEncryptor[T]) encryptKey(key, vaultKey envelope.EncryptionKey) (*envelope.EncryptedData, error) {
	descriptor, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	return e.encryptor.Encrypt(descriptor, vaultKey)
}

// encodeKey returns the {"algorithm","key"} descriptor of key.
func encodeKey(key envelope.EncryptionKey) ([]byte, error) {
	return canonical.Marshal(key)
}

func parseKey(descriptor []byte) (envelope.EncryptionKey, error) {
	var key envelope.EncryptionKey
	if err := json.Unmarshal(descriptor, &key); err != nil {
		return envelope.EncryptionKey{}, errors.Wrap(err, "parsing key")
	}
	return key, nil
}

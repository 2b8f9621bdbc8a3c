package vault

import (
	"github.com/benbjohnson/clock"
	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/jcarver989/lockbox/logger"
	"github.com/jcarver989/lockbox/metrics"
	"github.com/pkg/errors"
)

// Manager creates vaults and produces new vault snapshots as items are added,
// updated and deleted. Every mutation regenerates the vault's timestamp and
// digest together.
type Manager[T any] struct {
	items  *ItemEncryptor[T]
	clock  clock.Clock
	logger logger.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	encryptor envelope.Encryptor
	clock     clock.Clock
	logger    logger.Logger
}

// WithEncryptor sets the capability used for all cryptography. Defaults to a
// NaClEncryptor.
func WithEncryptor(e envelope.Encryptor) ManagerOption {
	return func(o *managerOptions) {
		o.encryptor = e
	}
}

// WithClock sets the clock used to timestamp mutations. Defaults to the wall
// clock.
func WithClock(c clock.Clock) ManagerOption {
	return func(o *managerOptions) {
		o.clock = c
	}
}

// WithLogger sets the logger. Defaults to logger.DefaultLogger.
func WithLogger(l logger.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = l
	}
}

// NewManager returns a Manager backed by a NaClEncryptor and the wall clock
// unless opts say otherwise.
func NewManager[T any](opts ...ManagerOption) *Manager[T] {
	o := managerOptions{
		encryptor: envelope.NewNaClEncryptor(),
		clock:     clock.New(),
		logger:    logger.DefaultLogger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Manager[T]{
		items:  NewItemEncryptor[T](o.encryptor, WithItemClock(o.clock)),
		clock:  o.clock,
		logger: o.logger,
	}
}

// ItemEncryptor returns the ItemEncryptor the Manager uses, e.g. to generate
// item keys or share them.
func (m *Manager[T]) ItemEncryptor() *ItemEncryptor[T] {
	return m.items
}

// Created is a freshly created vault.
type Created[T any] struct {
	Vault          *Vault[T]
	EncryptedVault *EncryptedVault
	VaultKey       envelope.EncryptionKey
}

// Create generates a new vault key and returns an empty vault. The vault has
// no digest until it is first mutated.
func (m *Manager[T]) Create() (*Created[T], error) {
	vaultKey, err := m.items.GenerateEncryptionKey()
	if err != nil {
		return nil, errors.Wrap(err, "vault: generating vault key")
	}

	return &Created[T]{
		Vault:          EmptyVault[T](),
		EncryptedVault: EmptyEncryptedVault(),
		VaultKey:       vaultKey,
	}, nil
}

// AddOrUpdateItem returns a copy of v with item encrypted into it. An item
// with the same id is replaced in place, otherwise item is appended. v is not
// modified.
func (m *Manager[T]) AddOrUpdateItem(v *EncryptedVault, item VaultItem[T], vaultKey envelope.EncryptionKey) (*EncryptedVault, error) {
	updated := v.Clone()

	encrypted, err := m.items.Encrypt(item, vaultKey)
	if err != nil {
		return nil, err
	}

	if i := indexOf(updated.Items, item.ID); i != -1 {
		updated.Items[i] = *encrypted
	} else {
		updated.Items = append(updated.Items, *encrypted)
	}

	if err := m.sign(updated, vaultKey); err != nil {
		return nil, err
	}

	metrics.Count("vault.item.upsert", 1, nil, 1.0)
	m.logger.Debug("vault item upserted", "item", item.ID, "items", len(updated.Items))
	return updated, nil
}

// DeleteItem returns a copy of v without the item with item's id. The result
// is signed even if no items remain. v is not modified.
func (m *Manager[T]) DeleteItem(v *EncryptedVault, item VaultItem[T], vaultKey envelope.EncryptionKey) (*EncryptedVault, error) {
	updated := v.Clone()

	items := updated.Items[:0]
	for _, i := range updated.Items {
		if i.ID != item.ID {
			items = append(items, i)
		}
	}
	updated.Items = items

	if err := m.sign(updated, vaultKey); err != nil {
		return nil, err
	}

	metrics.Count("vault.item.delete", 1, nil, 1.0)
	m.logger.Debug("vault item deleted", "item", item.ID, "items", len(updated.Items))
	return updated, nil
}

// Decrypt verifies and decrypts the vault's items, then each bucket of shared
// items against its own digest. Shared buckets always carry a digest.
//
// A vault with no items, no shared items and no digest is treated as never
// mutated and decrypts to an empty vault. Such a vault can't be told apart
// from a mutated one that had its items and digest stripped, so callers that
// need rollback protection for the first mutation must track it themselves.
func (m *Manager[T]) Decrypt(v *EncryptedVault, vaultKey envelope.EncryptionKey) (*Vault[T], error) {
	if neverMutated(v) {
		metrics.Count("vault.decrypt", 1, nil, 1.0)
		return EmptyVault[T](), nil
	}

	items, err := m.decryptItems(v.Items, vaultKey, v.LastModified, v.HMACOfItems)
	if err != nil {
		return nil, errors.Wrap(err, "vault: decrypting items")
	}

	shared := make([]SharedVaultItems[T], 0, len(v.SharedItems))
	for _, s := range v.SharedItems {
		sharedItems, err := m.decryptItems(s.Items, vaultKey, s.LastModified, s.HMACOfItems)
		if err != nil {
			return nil, errors.Wrapf(err, "vault: decrypting items shared by %s", s.ItemsOwnerID)
		}
		shared = append(shared, SharedVaultItems[T]{
			ItemsOwnerID:   s.ItemsOwnerID,
			ItemsOwnerName: s.ItemsOwnerName,
			Items:          sharedItems,
		})
	}

	metrics.Count("vault.decrypt", 1, nil, 1.0)
	return &Vault[T]{Items: items, SharedItems: shared}, nil
}

// sign stamps v with the current time and the digest of its items.
func (m *Manager[T]) sign(v *EncryptedVault, vaultKey envelope.EncryptionKey) error {
	timestamp := m.clock.Now().UnixMilli()
	hmac, err := m.items.Digest(v.Items, vaultKey, timestamp)
	if err != nil {
		return err
	}
	v.LastModified = &timestamp
	v.HMACOfItems = hmac
	return nil
}

func (m *Manager[T]) decryptItems(items []EncryptedVaultItem, vaultKey envelope.EncryptionKey, lastModified *int64, hmac []byte) ([]VaultItem[T], error) {
	decrypted, err := m.items.DecryptItemsWithHMAC(items, vaultKey, lastModified, hmac)
	if errors.Is(err, ErrIntegrity) {
		metrics.Count("vault.integrity.failure", 1, nil, 1.0)
		m.logger.Warn("vault integrity check failed", "items", len(items))
	}
	return decrypted, err
}

// neverMutated reports whether v is in the state Create returns it in.
func neverMutated(v *EncryptedVault) bool {
	return v.LastModified == nil && v.HMACOfItems == nil &&
		len(v.Items) == 0 && len(v.SharedItems) == 0
}

func indexOf(items []EncryptedVaultItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

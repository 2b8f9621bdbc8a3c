package vault

import (
	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/pborman/uuid"
)

// EmptyVault returns a decrypted vault with no items.
func EmptyVault[T any]() *Vault[T] {
	return &Vault[T]{
		Items:       []VaultItem[T]{},
		SharedItems: []SharedVaultItems[T]{},
	}
}

// EmptyEncryptedVault returns a vault that has never been mutated.
func EmptyEncryptedVault() *EncryptedVault {
	return &EncryptedVault{
		Items:                                  []EncryptedVaultItem{},
		SharedItems:                            []EncryptedSharedVaultItems{},
		SharedItemsEncryptedWithOwnersVaultKey: []EncryptedSharedVaultItems{},
	}
}

// NewItem returns an item encrypted under key once added to a vault.
func NewItem[T any](id string, data T, key envelope.EncryptionKey) VaultItem[T] {
	return VaultItem[T]{ID: id, EncryptionKey: key, Data: data}
}

// NewItemWithKey returns an item with a random id and a freshly generated
// item key.
func NewItemWithKey[T any](e envelope.Encryptor, data T) (VaultItem[T], error) {
	key, err := e.GenerateEncryptionKey()
	if err != nil {
		return VaultItem[T]{}, err
	}
	return NewItem(uuid.New(), data, key), nil
}

// Package vault implements an envelope encrypted, tamper evident vault of
// items.
//
// Every item is encrypted under its own key, and the item key is encrypted
// under the vault key. The collection of encrypted items is protected by a
// keyed digest over its canonical encoding together with the time of the last
// mutation, so that items being added, removed, modified or rolled back are
// detected when the vault is decrypted.
//
// Vaults are values. Mutators take a snapshot and return a new one; the
// package holds no vault state.
package vault

import "github.com/jcarver989/lockbox/crypto/envelope"

// VaultItem is a decrypted item. Data must be encodable with encoding/json.
type VaultItem[T any] struct {
	ID            string                 `json:"id"`
	EncryptionKey envelope.EncryptionKey `json:"encryptionKey"`
	Data          T                      `json:"data"`
}

// EncryptedVaultItem is an item as it is stored. The id stays in the clear so
// items can be addressed without the vault key.
type EncryptedVaultItem struct {
	ID string `json:"id"`

	// EncryptedKey is the item's EncryptionKey encrypted under the vault key.
	EncryptedKey envelope.EncryptedData `json:"encryptedKey"`

	// EncryptedData is the item's data encrypted under the item's key.
	EncryptedData envelope.EncryptedData `json:"encryptedData"`
}

// Clone returns a deep copy of i.
func (i EncryptedVaultItem) Clone() EncryptedVaultItem {
	return EncryptedVaultItem{
		ID:            i.ID,
		EncryptedKey:  i.EncryptedKey.Clone(),
		EncryptedData: i.EncryptedData.Clone(),
	}
}

// Vault is a decrypted vault.
type Vault[T any] struct {
	Items       []VaultItem[T]        `json:"items"`
	SharedItems []SharedVaultItems[T] `json:"sharedItems"`
}

// SharedVaultItems are read only items another user shared with the owner of
// the vault.
type SharedVaultItems[T any] struct {
	ItemsOwnerID   string         `json:"itemsOwnerId"`
	ItemsOwnerName string         `json:"itemsOwnerName"`
	Items          []VaultItem[T] `json:"items"`
}

// EncryptedSharedVaultItems is a bucket of shared items. It carries its own
// digest, independent of the vault's.
type EncryptedSharedVaultItems struct {
	ItemsOwnerID   string               `json:"itemsOwnerId"`
	ItemsOwnerName string               `json:"itemsOwnerName"`
	Items          []EncryptedVaultItem `json:"items"`
	HMACOfItems    []byte               `json:"hmacOfItems,omitempty"`
	LastModified   *int64               `json:"lastModified,omitempty"`
}

// Clone returns a deep copy of s.
func (s EncryptedSharedVaultItems) Clone() EncryptedSharedVaultItems {
	return EncryptedSharedVaultItems{
		ItemsOwnerID:   s.ItemsOwnerID,
		ItemsOwnerName: s.ItemsOwnerName,
		Items:          cloneItems(s.Items),
		HMACOfItems:    cloneBytes(s.HMACOfItems),
		LastModified:   cloneInt64(s.LastModified),
	}
}

// EncryptedVault is a vault as it is stored.
//
// HMACOfItems and LastModified are set together by every mutation. A vault
// with neither has never been mutated.
type EncryptedVault struct {
	Items       []EncryptedVaultItem        `json:"items"`
	SharedItems []EncryptedSharedVaultItems `json:"sharedItems"`

	// Items shared by the vault's owner, encrypted under the owner's vault
	// key. They are carried along but never decrypted by Manager.Decrypt.
	SharedItemsEncryptedWithOwnersVaultKey []EncryptedSharedVaultItems `json:"sharedItemsEncryptedWithOwnersVaultKey"`

	HMACOfItems  []byte `json:"hmacOfItems,omitempty"`
	LastModified *int64 `json:"lastModified,omitempty"`
}

// Mutated reports whether v carries a digest and timestamp.
func (v *EncryptedVault) Mutated() bool {
	return v.LastModified != nil && v.HMACOfItems != nil
}

// Clone returns a deep copy of v. Nil slices come back empty.
func (v *EncryptedVault) Clone() *EncryptedVault {
	return &EncryptedVault{
		Items:                                  cloneItems(v.Items),
		SharedItems:                            cloneShared(v.SharedItems),
		SharedItemsEncryptedWithOwnersVaultKey: cloneShared(v.SharedItemsEncryptedWithOwnersVaultKey),
		HMACOfItems:                            cloneBytes(v.HMACOfItems),
		LastModified:                           cloneInt64(v.LastModified),
	}
}

// EncryptedVaultItemEncryptionKey is an item key encrypted for another user,
// so that the item can be shared without sharing the vault key.
type EncryptedVaultItemEncryptionKey struct {
	UserID        string                 `json:"userId"`
	ItemOwnerID   string                 `json:"itemOwnerId"`
	ItemID        string                 `json:"itemId"`
	EncryptedData envelope.EncryptedData `json:"encryptedData"`
}

func cloneItems(items []EncryptedVaultItem) []EncryptedVaultItem {
	out := make([]EncryptedVaultItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneShared(shared []EncryptedSharedVaultItems) []EncryptedSharedVaultItems {
	out := make([]EncryptedSharedVaultItems, len(shared))
	for i, s := range shared {
		out[i] = s.Clone()
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

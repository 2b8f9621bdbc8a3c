package vault

import (
	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/pkg/errors"
)

// ShareItemKey encrypts item's key for userID, so that userID can decrypt
// the item without access to the owner's vault key.
func (e *ItemEncryptor[T]) ShareItemKey(item VaultItem[T], userID, ownerID string, theirPublicKey, myPrivateKey envelope.EncryptionKey) (*EncryptedVaultItemEncryptionKey, error) {
	descriptor, err := encodeKey(item.EncryptionKey)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: encoding key of item %s", item.ID)
	}

	ed, err := e.encryptor.AsymmetricEncrypt(descriptor, theirPublicKey, myPrivateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "vault: sharing key of item %s with %s", item.ID, userID)
	}

	return &EncryptedVaultItemEncryptionKey{
		UserID:        userID,
		ItemOwnerID:   ownerID,
		ItemID:        item.ID,
		EncryptedData: *ed,
	}, nil
}

// OpenSharedItemKey recovers an item key that was shared with
// ShareItemKey. theirPublicKey is the public key of the item's owner.
func (e *ItemEncryptor[T]) OpenSharedItemKey(shared EncryptedVaultItemEncryptionKey, theirPublicKey, myPrivateKey envelope.EncryptionKey) (envelope.EncryptionKey, error) {
	descriptor, err := e.encryptor.AsymmetricDecrypt(shared.EncryptedData.CipherText, shared.EncryptedData.Nonce, theirPublicKey, myPrivateKey)
	if err != nil {
		return envelope.EncryptionKey{}, errors.Wrapf(err, "vault: opening key of item %s shared by %s", shared.ItemID, shared.ItemOwnerID)
	}

	key, err := parseKey(descriptor)
	if err != nil {
		return envelope.EncryptionKey{}, errors.Wrapf(err, "vault: item %s", shared.ItemID)
	}
	return key, nil
}

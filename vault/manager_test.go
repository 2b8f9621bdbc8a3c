package vault

import (
	"bytes"
	"log"
	"testing"

	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/jcarver989/lockbox/logger"
	"github.com/jcarver989/lockbox/metrics"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubManager() (*Manager[login], *envelope.StubEncryptor) {
	stub := envelope.NewStubEncryptor()
	return NewManager[login](WithEncryptor(stub), WithClock(mockClock(1000))), stub
}

func TestManager_Create(t *testing.T) {
	m, _ := newStubManager()

	created, err := m.Create()
	require.NoError(t, err)
	assert.Equal(t, EmptyVault[login](), created.Vault)
	assert.Equal(t, EmptyEncryptedVault(), created.EncryptedVault)
	assert.False(t, created.EncryptedVault.Mutated())
	assert.Equal(t, []byte("encryption-key-123"), created.VaultKey.Key)
}

func TestManager_AddOrUpdateItem(t *testing.T) {
	m, stub := newStubManager()
	vaultKey, _ := stub.GenerateEncryptionKey()
	empty := EmptyEncryptedVault()

	item := newTestItem(t, stub, "123", "item 1")
	v, err := m.AddOrUpdateItem(empty, item, vaultKey)
	require.NoError(t, err)

	require.Len(t, v.Items, 1)
	assert.Equal(t, "123", v.Items[0].ID)
	assert.Equal(t, []byte("hmac-123"), v.HMACOfItems)
	require.NotNil(t, v.LastModified)
	assert.Equal(t, int64(1000), *v.LastModified)

	// The input snapshot is untouched.
	assert.Equal(t, EmptyEncryptedVault(), empty)
}

func TestManager_AddOrUpdateItem_Replaces(t *testing.T) {
	m, stub := newStubManager()
	vaultKey, _ := stub.GenerateEncryptionKey()

	v, err := m.AddOrUpdateItem(EmptyEncryptedVault(), newTestItem(t, stub, "1", "item 1"), vaultKey)
	require.NoError(t, err)
	v, err = m.AddOrUpdateItem(v, newTestItem(t, stub, "2", "item 2"), vaultKey)
	require.NoError(t, err)
	before := v.Clone()

	updated, err := m.AddOrUpdateItem(v, newTestItem(t, stub, "1", "item 1 renamed"), vaultKey)
	require.NoError(t, err)

	require.Len(t, updated.Items, 2)
	assert.Equal(t, "1", updated.Items[0].ID)
	assert.Equal(t, "2", updated.Items[1].ID)
	assert.NotEqual(t, before.Items[0], updated.Items[0])
	assert.Equal(t, before.Items[1], updated.Items[1])
	assert.Equal(t, before, v)
}

func TestManager_DeleteItem(t *testing.T) {
	m, stub := newStubManager()
	vaultKey, _ := stub.GenerateEncryptionKey()

	v, err := m.AddOrUpdateItem(EmptyEncryptedVault(), newTestItem(t, stub, "item-1", "item 1"), vaultKey)
	require.NoError(t, err)
	v.LastModified, v.HMACOfItems = nil, nil

	deleted, err := m.DeleteItem(v, newTestItem(t, stub, "item-1", "item 1"), vaultKey)
	require.NoError(t, err)

	assert.Len(t, deleted.Items, 0)
	assert.NotNil(t, deleted.Items)
	assert.Equal(t, []byte("hmac-123"), deleted.HMACOfItems)
	require.NotNil(t, deleted.LastModified)
	assert.Equal(t, int64(1000), *deleted.LastModified)
	assert.True(t, deleted.Mutated())
	assert.Len(t, v.Items, 1)
}

func TestManager_DeleteItem_Unknown(t *testing.T) {
	m, stub := newStubManager()
	vaultKey, _ := stub.GenerateEncryptionKey()

	v, err := m.AddOrUpdateItem(EmptyEncryptedVault(), newTestItem(t, stub, "1", "item 1"), vaultKey)
	require.NoError(t, err)

	deleted, err := m.DeleteItem(v, newTestItem(t, stub, "2", "item 2"), vaultKey)
	require.NoError(t, err)
	assert.Equal(t, v.Items, deleted.Items)
}

func TestManager_RealImplementation(t *testing.T) {
	// Given we create a "real" vault
	m := NewManager[login]()
	created, err := m.Create()
	require.NoError(t, err)

	// And then we add an item to it
	item := newTestItem(t, m.ItemEncryptor().Encryptor(), "123", "item 1")
	v, err := m.AddOrUpdateItem(created.EncryptedVault, item, created.VaultKey)
	require.NoError(t, err)

	// When we decrypt it
	decrypted, err := m.Decrypt(v, created.VaultKey)
	require.NoError(t, err)

	// Then we expect our item to be decrypted
	assert.Equal(t, []VaultItem[login]{item}, decrypted.Items)
	assert.Empty(t, decrypted.SharedItems)
}

func TestManager_Decrypt_NeverMutated(t *testing.T) {
	m := NewManager[login]()
	created, err := m.Create()
	require.NoError(t, err)

	decrypted, err := m.Decrypt(created.EncryptedVault, created.VaultKey)
	require.NoError(t, err)
	assert.Equal(t, EmptyVault[login](), decrypted)
}

func TestManager_Decrypt_DeletedToEmpty(t *testing.T) {
	m := NewManager[login]()
	created, _ := m.Create()
	item := newTestItem(t, m.ItemEncryptor().Encryptor(), "123", "item 1")

	v, err := m.AddOrUpdateItem(created.EncryptedVault, item, created.VaultKey)
	require.NoError(t, err)
	v, err = m.DeleteItem(v, item, created.VaultKey)
	require.NoError(t, err)

	decrypted, err := m.Decrypt(v, created.VaultKey)
	require.NoError(t, err)
	assert.Empty(t, decrypted.Items)

	// Stripping the digest from a mutated vault is not a way back to the
	// never mutated state once it holds items.
	v, _ = m.AddOrUpdateItem(v, item, created.VaultKey)
	v.LastModified, v.HMACOfItems = nil, nil
	_, err = m.Decrypt(v, created.VaultKey)
	assert.True(t, errors.Is(err, ErrMissingIntegrityFields), "got %v", err)
}

func TestManager_Decrypt_Tampered(t *testing.T) {
	r := metrics.NewFakeMetricsReporter()
	defer func(orig metrics.MetricsReporter) { metrics.Reporter = orig }(metrics.Reporter)
	metrics.Reporter = r

	b := new(bytes.Buffer)
	m := NewManager[login](WithLogger(logger.New(log.New(b, "", 0), logger.WARN)))
	created, _ := m.Create()
	enc := m.ItemEncryptor().Encryptor()

	v, err := m.AddOrUpdateItem(created.EncryptedVault, newTestItem(t, enc, "1", "item 1"), created.VaultKey)
	require.NoError(t, err)
	v, err = m.AddOrUpdateItem(v, newTestItem(t, enc, "2", "item 2"), created.VaultKey)
	require.NoError(t, err)

	// Roll back by dropping an item.
	v.Items = v.Items[:1]

	decrypted, err := m.Decrypt(v, created.VaultKey)
	assert.Nil(t, decrypted)
	assert.True(t, errors.Is(err, ErrIntegrity), "got %v", err)
	assert.Equal(t, int64(1), r.CountOf("vault.integrity.failure"))
	assert.Equal(t, int64(2), r.CountOf("vault.item.upsert"))
	assert.Equal(t, int64(0), r.CountOf("vault.decrypt"))
	assert.Contains(t, b.String(), "status=warn vault integrity check failed items=1")
}

func TestManager_Decrypt_SharedItems(t *testing.T) {
	m := NewManager[login]()
	created, _ := m.Create()
	enc := m.ItemEncryptor().Encryptor()

	shared := []VaultItem[login]{newTestItem(t, enc, "s1", "shared 1")}
	signed, err := m.ItemEncryptor().EncryptItemsWithHMAC(shared, created.VaultKey)
	require.NoError(t, err)

	v := created.EncryptedVault.Clone()
	v.SharedItems = append(v.SharedItems, EncryptedSharedVaultItems{
		ItemsOwnerID:   "user-2",
		ItemsOwnerName: "Bob",
		Items:          signed.EncryptedItems,
		HMACOfItems:    signed.HMAC,
		LastModified:   &signed.Timestamp,
	})
	v.SharedItemsEncryptedWithOwnersVaultKey = append(v.SharedItemsEncryptedWithOwnersVaultKey, EncryptedSharedVaultItems{
		ItemsOwnerID: "user-1",
		Items:        []EncryptedVaultItem{{ID: "opaque"}},
	})

	v, err = m.AddOrUpdateItem(v, newTestItem(t, enc, "1", "item 1"), created.VaultKey)
	require.NoError(t, err)
	assert.Len(t, v.SharedItemsEncryptedWithOwnersVaultKey, 1)

	decrypted, err := m.Decrypt(v, created.VaultKey)
	require.NoError(t, err)
	require.Len(t, decrypted.Items, 1)
	require.Len(t, decrypted.SharedItems, 1)
	assert.Equal(t, SharedVaultItems[login]{
		ItemsOwnerID:   "user-2",
		ItemsOwnerName: "Bob",
		Items:          shared,
	}, decrypted.SharedItems[0])

	t.Run("tampered bucket", func(t *testing.T) {
		ts := *v.SharedItems[0].LastModified + 1
		tampered := v.Clone()
		tampered.SharedItems[0].LastModified = &ts

		_, err := m.Decrypt(tampered, created.VaultKey)
		assert.True(t, errors.Is(err, ErrIntegrity), "got %v", err)
	})

	t.Run("stripped bucket", func(t *testing.T) {
		stripped := v.Clone()
		stripped.SharedItems[0].Items = nil
		stripped.SharedItems[0].HMACOfItems = nil
		stripped.SharedItems[0].LastModified = nil

		decrypted, err := m.Decrypt(stripped, created.VaultKey)
		assert.Nil(t, decrypted)
		assert.True(t, errors.Is(err, ErrMissingIntegrityFields), "got %v", err)
	})
}

func TestManager_Decrypt_UnsignedWithSharedItems(t *testing.T) {
	m := NewManager[login]()
	created, _ := m.Create()

	signed, err := m.ItemEncryptor().EncryptItemsWithHMAC(
		[]VaultItem[login]{newTestItem(t, m.ItemEncryptor().Encryptor(), "s1", "shared 1")}, created.VaultKey)
	require.NoError(t, err)

	v := created.EncryptedVault.Clone()
	v.SharedItems = append(v.SharedItems, EncryptedSharedVaultItems{
		ItemsOwnerID: "user-2",
		Items:        signed.EncryptedItems,
		HMACOfItems:  signed.HMAC,
		LastModified: &signed.Timestamp,
	})

	// Only a vault exactly as Create returns it may be unsigned.
	_, err = m.Decrypt(v, created.VaultKey)
	assert.True(t, errors.Is(err, ErrMissingIntegrityFields), "got %v", err)
}

func TestManager_LogsMutations(t *testing.T) {
	b := new(bytes.Buffer)
	stub := envelope.NewStubEncryptor()
	m := NewManager[login](
		WithEncryptor(stub),
		WithClock(mockClock(1000)),
		WithLogger(logger.New(log.New(b, "", 0), logger.DEBUG)),
	)
	vaultKey, _ := stub.GenerateEncryptionKey()

	v, err := m.AddOrUpdateItem(EmptyEncryptedVault(), newTestItem(t, stub, "1", "item 1"), vaultKey)
	require.NoError(t, err)
	_, err = m.DeleteItem(v, newTestItem(t, stub, "1", "item 1"), vaultKey)
	require.NoError(t, err)

	assert.Equal(t,
		"status=debug vault item upserted item=1 items=1\n"+
			"status=debug vault item deleted item=1 items=0\n",
		b.String())
}

func TestManager_EncryptorFailure(t *testing.T) {
	m, stub := newStubManager()
	vaultKey, _ := stub.GenerateEncryptionKey()
	stub.FailOnKey(vaultKey)

	item := NewItem("1", login{Name: "item 1"}, envelope.EncryptionKey{Algorithm: envelope.XSalsa20Poly1305, Key: []byte("item-key")})
	_, err := m.AddOrUpdateItem(EmptyEncryptedVault(), item, vaultKey)
	assert.Error(t, err)
}

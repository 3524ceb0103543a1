package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

type fakeSecretStore struct {
	values map[string]string

	getErr    error
	putErr    error
	deleteErr error

	getCalls    int
	putCalls    int
	deleteCalls int
}

func newFakeSecretStore() *fakeSecretStore {
	return &fakeSecretStore{values: map[string]string{}}
}

func (f *fakeSecretStore) Get(_ context.Context, key string) (string, error) {
	f.getCalls++
	if f.getErr != nil {
		return "", f.getErr
	}
	value, ok := f.values[key]
	if !ok {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrTokenNotFound)
	}
	return value, nil
}

func (f *fakeSecretStore) Put(_ context.Context, key string, value string) error {
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	f.values[key] = value
	return nil
}

func (f *fakeSecretStore) Delete(_ context.Context, key string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.values, key)
	return nil
}

const testKey = "foundry/access_token"

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	primary.values[testKey] = "from-pass"
	fallback := newFakeSecretStore()
	store := NewStore(primary, fallback)

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
	assert.Zero(t, fallback.getCalls)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	primary.getErr = errors.New("pass unavailable")
	fallback := newFakeSecretStore()
	fallback.values[testKey] = "from-file"
	store := NewStore(primary, fallback)

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	primary.getErr = errors.New("pass failed")
	fallback := newFakeSecretStore()
	fallback.getErr = errors.New("file failed")
	store := NewStore(primary, fallback)

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStoreGetReportsPlainAbsenceWhenNeitherBackendHasKey(t *testing.T) {
	t.Parallel()

	store := NewStore(newFakeSecretStore(), newFakeSecretStore())

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	assert.NotContains(t, err.Error(), "backend")
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	primary.putErr = errors.New("pass failed")
	fallback := newFakeSecretStore()
	store := NewStore(primary, fallback)

	err := store.Put(context.Background(), testKey, "secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", fallback.values[testKey])
}

func TestStorePutDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	fallback := newFakeSecretStore()
	store := NewStore(primary, fallback)

	err := store.Put(context.Background(), testKey, "secret")
	require.NoError(t, err)
	assert.Zero(t, fallback.putCalls)
}

func TestStoreDeleteFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	primary.deleteErr = errors.New("pass failed")
	fallback := newFakeSecretStore()
	fallback.values[testKey] = "secret"
	store := NewStore(primary, fallback)

	err := store.Delete(context.Background(), testKey)
	require.NoError(t, err)
	assert.Empty(t, fallback.values)
}

func TestStoreDeleteDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	fallback := newFakeSecretStore()
	store := NewStore(primary, fallback)

	err := store.Delete(context.Background(), testKey)
	require.NoError(t, err)
	assert.Zero(t, fallback.deleteCalls)
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := newFakeSecretStore()
	primary.getErr = context.Canceled
	fallback := newFakeSecretStore()
	store := NewStore(primary, fallback)

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fallback.getCalls)
}

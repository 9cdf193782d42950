package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

func TestCredentialRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	err := repo.Set(ctx, "dexcom_share", "password", "s3cret-pw")
	require.NoError(t, err)

	val, err := repo.Get(ctx, "dexcom_share", "password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pw", val)
}

func TestCredentialRepo_ValueEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dexcom_share", "password", "s3cret-pw"))

	var raw string
	err := db.Reader.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE service = ? AND key = ?`, "dexcom_share", "password",
	).Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "s3cret-pw")
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	val, err := repo.Get(ctx, "dexcom_share", "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

func TestCredentialRepo_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dexcom_share", "session_id", "old-value"))
	require.NoError(t, repo.Set(ctx, "dexcom_share", "session_id", "new-value"))

	val, err := repo.Get(ctx, "dexcom_share", "session_id")
	require.NoError(t, err)
	assert.Equal(t, "new-value", val)

	all, err := repo.GetAll(ctx, "dexcom_share")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCredentialRepo_GetAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dexcom_share", "username", "alice@example.com"))
	require.NoError(t, repo.Set(ctx, "dexcom_share", "region", "OUS"))
	require.NoError(t, repo.Set(ctx, "other", "token", "unrelated"))

	creds, err := repo.GetAll(ctx, "dexcom_share")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"username": "alice@example.com",
		"region":   "OUS",
	}, creds)
}

func TestCredentialRepo_GetAllEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	creds, err := repo.GetAll(ctx, "dexcom_share")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dexcom_share", "session_id", "abc"))
	require.NoError(t, repo.Delete(ctx, "dexcom_share", "session_id"))

	val, err := repo.Get(ctx, "dexcom_share", "session_id")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

func TestCredentialRepo_DeleteNonexistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	err := repo.Delete(ctx, "dexcom_share", "nonexistent")
	assert.NoError(t, err, "deleting nonexistent credential should not error")
}

func TestCredentialRepo_DeleteService(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dexcom_share", "username", "alice@example.com"))
	require.NoError(t, repo.Set(ctx, "dexcom_share", "password", "s3cret-pw"))
	require.NoError(t, repo.Set(ctx, "other", "token", "kept"))

	require.NoError(t, repo.DeleteService(ctx, "dexcom_share"))

	creds, err := repo.GetAll(ctx, "dexcom_share")
	require.NoError(t, err)
	assert.Empty(t, creds)

	val, err := repo.Get(ctx, "other", "token")
	require.NoError(t, err)
	assert.Equal(t, "kept", val)
}

func TestCredentialRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	err := repo.Set(ctx, "dexcom_share", "password", "s3cret-pw")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "dexcom_share", "password")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.GetAll(ctx, "dexcom_share")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestCredentialRepo_WrongKeyFailsToDecrypt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey).Set(ctx, "dexcom_share", "password", "s3cret-pw"))

	other := NewCredentialRepo(db, bytes.Repeat([]byte{0x07}, 32))
	_, err := other.Get(ctx, "dexcom_share", "password")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cret-pw")
}

func TestCredentialRepo_ReplaceService(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dexcom_share", "username", "alice@example.com"))
	require.NoError(t, repo.Set(ctx, "dexcom_share", "session_id", "old-session"))
	require.NoError(t, repo.Set(ctx, "other", "token", "kept"))

	err := repo.ReplaceService(ctx, "dexcom_share", map[string]string{
		"username": "bob@example.com",
		"password": "hunter2-pw",
	})
	require.NoError(t, err)

	creds, err := repo.GetAll(ctx, "dexcom_share")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"username": "bob@example.com", "password": "hunter2-pw"}, creds)

	val, err := repo.Get(ctx, "other", "token")
	require.NoError(t, err)
	assert.Equal(t, "kept", val)
}

func TestCredentialRepo_ReplaceServiceRollsBackOnInsertFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceService(ctx, "dexcom_share", map[string]string{
		"username": "alice@example.com",
		"password": "alice-pw",
	}))

	_, err := db.Writer.ExecContext(ctx, `
		CREATE TRIGGER fail_username_insert BEFORE INSERT ON credentials
		WHEN NEW.key = 'username'
		BEGIN SELECT RAISE(ABORT, 'disk full'); END
	`)
	require.NoError(t, err)

	err = repo.ReplaceService(ctx, "dexcom_share", map[string]string{
		"username": "bob@example.com",
		"password": "bob-pw",
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "bob-pw")

	creds, err := repo.GetAll(ctx, "dexcom_share")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"username": "alice@example.com", "password": "alice-pw"}, creds)
}

func TestCredentialRepo_ReplaceServiceNoKeyLeavesStoredValues(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey).Set(ctx, "dexcom_share", "username", "alice@example.com"))

	err := NewCredentialRepo(db, nil).ReplaceService(ctx, "dexcom_share", map[string]string{"username": "bob@example.com"})
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	val, err := NewCredentialRepo(db, testKey).Get(ctx, "dexcom_share", "username")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", val)
}

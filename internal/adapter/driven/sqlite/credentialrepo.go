package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Values are encrypted with AES-256-GCM before write and decrypted after read;
// service and key names are stored in the clear.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil, in which case reads and writes return driven.ErrEncryptionKeyNotSet.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Set stores or replaces the value for (service, key).
func (r *CredentialRepo) Set(ctx context.Context, service, key, value string) error {
	encrypted, err := r.encrypt(value)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (service, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (service, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, key, encrypted); err != nil {
		return fmt.Errorf("set credential %s/%s: %w", service, key, err)
	}
	return nil
}

// Get retrieves the plaintext value for (service, key).
// Returns ("", nil) if nothing is stored.
func (r *CredentialRepo) Get(ctx context.Context, service, key string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM credentials WHERE service = ? AND key = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, service, key).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s/%s: %w", service, key, err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %s/%s: %w", service, key, err)
	}
	return plaintext, nil
}

// GetAll returns every key/value pair stored for the service.
func (r *CredentialRepo) GetAll(ctx context.Context, service string) (map[string]string, error) {
	creds, err := r.list(ctx, service)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(creds))
	for _, c := range creds {
		out[c.Key] = c.Value
	}
	return out, nil
}

// list returns the stored credentials for the service with decrypted values,
// ordered by key.
func (r *CredentialRepo) list(ctx context.Context, service string) ([]model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT id, service, key, value, updated_at FROM credentials WHERE service = ? ORDER BY key`
	rows, err := r.db.Reader.QueryContext(ctx, query, service)
	if err != nil {
		return nil, fmt.Errorf("list credentials for %s: %w", service, err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

func (r *CredentialRepo) scanCredential(s scanner) (model.Credential, error) {
	var cred model.Credential
	var encrypted, updatedAt string
	if err := s.Scan(&cred.ID, &cred.Service, &cred.Key, &encrypted, &updatedAt); err != nil {
		return model.Credential{}, fmt.Errorf("scan credential: %w", err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return model.Credential{}, fmt.Errorf("decrypt credential %s/%s: %w", cred.Service, cred.Key, err)
	}
	cred.Value = plaintext

	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Credential{}, fmt.Errorf("parse updated_at for credential %s/%s: %w", cred.Service, cred.Key, err)
	}

	return cred, nil
}

// Delete removes a single key. Deleting a missing key is not an error.
func (r *CredentialRepo) Delete(ctx context.Context, service, key string) error {
	const query = `DELETE FROM credentials WHERE service = ? AND key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, key); err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", service, key, err)
	}
	return nil
}

// DeleteService removes every key stored for the service.
func (r *CredentialRepo) DeleteService(ctx context.Context, service string) error {
	const query = `DELETE FROM credentials WHERE service = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("delete credentials for %s: %w", service, err)
	}
	return nil
}

// ReplaceService atomically replaces every key stored for the service with values.
// Every value is encrypted before the transaction starts so a key error leaves
// the stored set untouched.
func (r *CredentialRepo) ReplaceService(ctx context.Context, service string, values map[string]string) error {
	keys := slices.Sorted(maps.Keys(values))
	encrypted := make([]string, len(keys))
	for i, key := range keys {
		value, err := r.encrypt(values[key])
		if err != nil {
			return err
		}
		encrypted[i] = value
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const deleteQuery = `DELETE FROM credentials WHERE service = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, service); err != nil {
		return fmt.Errorf("delete credentials for %s: %w", service, err)
	}

	const insertQuery = `
		INSERT INTO credentials (service, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`
	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare credential insert: %w", err)
	}
	defer stmt.Close()

	for i, key := range keys {
		if _, err := stmt.ExecContext(ctx, service, key, encrypted[i]); err != nil {
			return fmt.Errorf("insert credential %s/%s: %w", service, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials for %s: %w", service, err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/mossfield13/passctl/pkg/crypto"
)

// RotateKey re-encrypts the entire vault under newKeys. The old keys must
// open the stored verification token and every entry; any failure aborts
// before the database is touched. All writes happen inside one transaction,
// so a crash mid-rotation leaves the vault wholly on the old key set or
// wholly on the new one, never split between them.
//
// Entry timestamps are preserved: rotation changes ciphertext, not content.
func (s *Store) RotateKey(ctx context.Context, oldKeys, newKeys *crypto.KeySet, newSalt []byte, newParams crypto.Params) error {
	if len(newSalt) != crypto.SaltLength {
		return fmt.Errorf("%w: salt must be %d bytes", ErrValidation, crypto.SaltLength)
	}
	if !newParams.Valid() {
		return fmt.Errorf("%w: key derivation parameters out of range", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.verifyBlobLocked(ctx, s.db, oldKeys); err != nil {
		return err
	}

	rows, err := s.loadRows(ctx, s.db)
	if err != nil {
		return err
	}

	// Decrypt with the old keys and re-encrypt with the new ones entirely
	// in memory before the first write.
	reencrypted := make([]*encRow, 0, len(rows))
	for _, row := range rows {
		entry, err := decryptEntry(oldKeys, row)
		if err != nil {
			return err
		}
		newRow, err := encryptEntry(newKeys, entry)
		if err != nil {
			return err
		}
		reencrypted = append(reencrypted, newRow)
	}

	token, err := crypto.RandomBytes(verifyTokenLength)
	if err != nil {
		return fmt.Errorf("vault: failed to generate verification token: %w", err)
	}
	defer crypto.SecureWipe(token)

	verifyBlob, err := crypto.Encrypt(newKeys.Verify, token)
	if err != nil {
		return fmt.Errorf("vault: failed to seal verification token: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vault: failed to begin rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE vault_meta
		SET salt = ?, verify_blob = ?, kdf_time = ?, kdf_memory_kib = ?,
			kdf_threads = ?, updated_at = ?
		WHERE id = 1
	`, newSalt, verifyBlob, newParams.Time, newParams.MemoryKiB,
		newParams.Threads, now.Unix()); err != nil {
		return fmt.Errorf("vault: failed to update vault metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE entries
		SET site_name_enc = ?, url_enc = ?, username_enc = ?, password_enc = ?,
			notes_enc = ?, totp_secret_enc = ?, custom_fields_enc = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("vault: failed to prepare rotation statement: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range reencrypted {
		if _, err := stmt.ExecContext(ctx, row.siteName, row.url, row.username,
			row.password, row.notes, row.totpSecret, row.customFields, row.id); err != nil {
			return fmt.Errorf("vault: failed to re-encrypt entry %s: %w", row.id, err)
		}
	}

	if s.rotateTestHook != nil {
		if err := s.rotateTestHook(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vault: failed to commit rotation: %w", err)
	}
	return nil
}

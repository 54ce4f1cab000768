package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/model"
)

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new Postgres-backed OtpRepo
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

const otpColumns = `id, phone, code_hash, type, verified, verified_at, created_at, expires_at`

// Replace keeps at most one record per (phone, type): it deletes all existing rows for the pair and
// inserts rec in one transaction. The advisory lock serializes concurrent issues for the same pair,
// so the last writer wins and no superseded row survives.
func (r *otpRepo) Replace(ctx context.Context, rec model.OtpRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, rec.Phone+":"+string(rec.Type))
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM otp_codes WHERE phone = $1 AND type = $2`, rec.Phone, string(rec.Type))
	if err != nil {
		return fmt.Errorf("delete existing otps: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO otp_codes (id, phone, code_hash, type, verified, verified_at, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Phone, rec.CodeHash, string(rec.Type), rec.Verified, rec.VerifiedAt, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindByCode returns the record for (phone, type, code_hash) regardless of its verified or expiry state.
func (r *otpRepo) FindByCode(ctx context.Context, phone string, otpType model.OtpType, codeHash string) (model.OtpRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+otpColumns+`
		FROM otp_codes
		WHERE phone = $1 AND type = $2 AND code_hash = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, phone, string(otpType), codeHash)
	rec, err := scanOtp(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OtpRecord{}, ErrNotFound
		}
		return model.OtpRecord{}, fmt.Errorf("query otp: %w", err)
	}
	return rec, nil
}

// MarkVerified is a compare-and-set on the verified flag; only one concurrent caller can flip it,
// and never after expiry.
func (r *otpRepo) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_codes SET verified = true, verified_at = $2
		WHERE id = $1 AND verified = false AND expires_at >= $2
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteByPhone removes all records for (phone, type).
func (r *otpRepo) DeleteByPhone(ctx context.Context, phone string, otpType model.OtpType) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE phone = $1 AND type = $2`, phone, string(otpType))
	if err != nil {
		return 0, fmt.Errorf("delete otps: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// DeleteExpired removes records whose expiry is before the given time.
func (r *otpRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// CountActive returns the number of unverified, unexpired records for (phone, type).
func (r *otpRepo) CountActive(ctx context.Context, phone string, otpType model.OtpType, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM otp_codes
		WHERE phone = $1 AND type = $2 AND verified = false AND expires_at >= $3
	`, phone, string(otpType), now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active otps: %w", err)
	}
	return count, nil
}

func scanOtp(row *sql.Row) (model.OtpRecord, error) {
	var rec model.OtpRecord
	var idStr, otpType string
	var verifiedAt sql.NullTime
	err := row.Scan(
		&idStr,
		&rec.Phone,
		&rec.CodeHash,
		&otpType,
		&rec.Verified,
		&verifiedAt,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		return model.OtpRecord{}, err
	}
	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OtpRecord{}, fmt.Errorf("parse otp ID: %w", err)
	}
	rec.Type = model.OtpType(otpType)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.VerifiedAt = &t
	}
	return rec, nil
}

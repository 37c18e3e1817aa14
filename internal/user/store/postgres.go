package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"monedero/internal/user/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/platform/tx"
)

// Postgres persists users in PostgreSQL. Collections travel as JSONB; the
// version token is a BYTEA column compared inside the UPDATE statement so the
// concurrency check is atomic with the write.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// querier lets store methods run inside an ambient transaction when one was
// placed in the context.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.pool
}

type userRow struct {
	Verifications []models.Verification `json:"verifications"`
	Devices       []models.Device       `json:"devices"`
	Consents      []models.Consent      `json:"consents"`
}

const userColumns = `id, phone_country_code, phone_number, email, password_hash, stage,
	verifications, devices, consents, client_id,
	created_at, created_by, updated_at, updated_by, version`

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	verifications, devices, consents, err := marshalCollections(user)
	if err != nil {
		return err
	}

	user.Audit.Version = id.NewVersion()
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID.String(), user.PhoneCountryCode, user.PhoneNumber, user.Email,
		user.PasswordHash, string(user.Stage),
		verifications, devices, consents, clientIDString(user),
		user.Audit.CreatedAt, user.Audit.CreatedBy,
		user.Audit.UpdatedAt, user.Audit.UpdatedBy, []byte(user.Audit.Version),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.q(ctx).QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, userID.String())
	return scanUser(row)
}

func (s *Postgres) FindByPhone(ctx context.Context, countryCode, number string) (*models.User, error) {
	row := s.q(ctx).QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE phone_country_code = $1 AND phone_number = $2`, countryCode, number)
	return scanUser(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.q(ctx).QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// Update writes the aggregate only when the stored version still matches the
// token the caller observed. Zero rows affected distinguishes a stale token
// from a missing row.
func (s *Postgres) Update(ctx context.Context, user *models.User, expected id.Version) error {
	verifications, devices, consents, err := marshalCollections(user)
	if err != nil {
		return err
	}

	next := id.NewVersion()
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE users SET
			phone_country_code = $2, phone_number = $3, email = $4,
			password_hash = $5, stage = $6,
			verifications = $7, devices = $8, consents = $9, client_id = $10,
			updated_at = $11, updated_by = $12, version = $13
		WHERE id = $1 AND version = $14`,
		user.ID.String(), user.PhoneCountryCode, user.PhoneNumber, user.Email,
		user.PasswordHash, string(user.Stage),
		verifications, devices, consents, clientIDString(user),
		user.Audit.UpdatedAt, user.Audit.UpdatedBy, []byte(next), []byte(expected),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.q(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check user existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}
	user.Audit.Version = next
	return nil
}

func marshalCollections(user *models.User) (verifications, devices, consents []byte, err error) {
	if verifications, err = json.Marshal(user.Verifications); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal verifications: %w", err)
	}
	if devices, err = json.Marshal(user.Devices); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal devices: %w", err)
	}
	if consents, err = json.Marshal(user.Consents); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal consents: %w", err)
	}
	return verifications, devices, consents, nil
}

func clientIDString(user *models.User) *string {
	if user.ClientID == nil {
		return nil
	}
	s := user.ClientID.String()
	return &s
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user          models.User
		userID        string
		stage         string
		verifications []byte
		devices       []byte
		consents      []byte
		clientID      *string
		version       []byte
	)
	err := row.Scan(
		&userID, &user.PhoneCountryCode, &user.PhoneNumber, &user.Email,
		&user.PasswordHash, &stage,
		&verifications, &devices, &consents, &clientID,
		&user.Audit.CreatedAt, &user.Audit.CreatedBy,
		&user.Audit.UpdatedAt, &user.Audit.UpdatedBy, &version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	parsedID, err := id.ParseUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("parse stored user id: %w", err)
	}
	user.ID = parsedID
	user.Stage = models.RegistrationStage(stage)
	user.Audit.Version = id.Version(version)

	if err := json.Unmarshal(verifications, &user.Verifications); err != nil {
		return nil, fmt.Errorf("unmarshal verifications: %w", err)
	}
	if err := json.Unmarshal(devices, &user.Devices); err != nil {
		return nil, fmt.Errorf("unmarshal devices: %w", err)
	}
	if err := json.Unmarshal(consents, &user.Consents); err != nil {
		return nil, fmt.Errorf("unmarshal consents: %w", err)
	}
	if clientID != nil {
		parsed, err := id.ParseClientID(*clientID)
		if err != nil {
			return nil, fmt.Errorf("parse stored client id: %w", err)
		}
		user.ClientID = &parsed
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

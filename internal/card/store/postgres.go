package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"monedero/internal/card/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/platform/tx"
)

// Postgres persists cards in PostgreSQL. The version token is compared
// inside the UPDATE statement so the concurrency check is atomic with the
// write.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.pool
}

const cardColumns = `id, account_id, processor_token, masked_number, card_type, state,
	expires_on, temp_blocked, daily_limit, online_purchases, atm_withdrawal,
	shipment_state, tracking_number,
	created_at, created_by, updated_at, updated_by, version`

func (s *Postgres) Create(ctx context.Context, card *models.Card) error {
	card.Audit.Version = id.NewVersion()
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		card.ID.String(), card.AccountID.String(), card.ProcessorToken, card.MaskedNumber,
		string(card.Type), string(card.State), card.ExpiresOn, card.TempBlocked,
		card.DailyLimit.String(), card.OnlinePurchases, card.ATMWithdrawal,
		shipmentString(card), card.TrackingNumber,
		card.Audit.CreatedAt, card.Audit.CreatedBy,
		card.Audit.UpdatedAt, card.Audit.UpdatedBy, []byte(card.Audit.Version),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, cardID id.CardID) (*models.Card, error) {
	row := s.q(ctx).QueryRow(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE id = $1`, cardID.String())
	return scanCard(row)
}

func (s *Postgres) ListByAccount(ctx context.Context, accountID id.AccountID) ([]*models.Card, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE account_id = $1 ORDER BY created_at`,
		accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, card *models.Card, expected id.Version) error {
	next := id.NewVersion()
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE cards SET
			state = $2, temp_blocked = $3, daily_limit = $4,
			online_purchases = $5, atm_withdrawal = $6,
			shipment_state = $7, tracking_number = $8,
			updated_at = $9, updated_by = $10, version = $11
		WHERE id = $1 AND version = $12`,
		card.ID.String(), string(card.State), card.TempBlocked, card.DailyLimit.String(),
		card.OnlinePurchases, card.ATMWithdrawal,
		shipmentString(card), card.TrackingNumber,
		card.Audit.UpdatedAt, card.Audit.UpdatedBy, []byte(next), []byte(expected),
	)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.q(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM cards WHERE id = $1)`, card.ID.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check card existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}
	card.Audit.Version = next
	return nil
}

func shipmentString(card *models.Card) *string {
	if card.ShipmentState == nil {
		return nil
	}
	s := string(*card.ShipmentState)
	return &s
}

func scanCard(row pgx.Row) (*models.Card, error) {
	var (
		card       models.Card
		cardID     string
		accountID  string
		cardType   string
		state      string
		expiresOn  time.Time
		dailyLimit string
		shipment   *string
		version    []byte
	)
	err := row.Scan(
		&cardID, &accountID, &card.ProcessorToken, &card.MaskedNumber,
		&cardType, &state, &expiresOn, &card.TempBlocked,
		&dailyLimit, &card.OnlinePurchases, &card.ATMWithdrawal,
		&shipment, &card.TrackingNumber,
		&card.Audit.CreatedAt, &card.Audit.CreatedBy,
		&card.Audit.UpdatedAt, &card.Audit.UpdatedBy, &version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan card: %w", err)
	}

	parsedCardID, err := id.ParseCardID(cardID)
	if err != nil {
		return nil, fmt.Errorf("parse stored card id: %w", err)
	}
	parsedAccountID, err := id.ParseAccountID(accountID)
	if err != nil {
		return nil, fmt.Errorf("parse stored account id: %w", err)
	}
	limit, err := decimal.NewFromString(dailyLimit)
	if err != nil {
		return nil, fmt.Errorf("parse stored daily limit: %w", err)
	}

	card.ID = parsedCardID
	card.AccountID = parsedAccountID
	card.Type = models.CardType(cardType)
	card.State = models.CardState(state)
	card.ExpiresOn = expiresOn
	card.DailyLimit = limit
	card.Audit.Version = id.Version(version)
	if shipment != nil {
		st := models.ShipmentState(*shipment)
		card.ShipmentState = &st
	}
	return &card, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

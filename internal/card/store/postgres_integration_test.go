//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"monedero/internal/card/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/testutil/containers"
)

type PostgresCardSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
	now   time.Time
}

func TestPostgresCardSuite(t *testing.T) {
	suite.Run(t, new(PostgresCardSuite))
}

func (s *PostgresCardSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.Pool)
	s.ctx = context.Background()
	s.now = time.Date(2026, time.May, 5, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresCardSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
}

func (s *PostgresCardSuite) newCard(accountID id.AccountID) *models.Card {
	card, err := models.NewPhysicalCard(id.NewCardID(), accountID,
		uuid.NewString(), "411111******1111",
		s.now.AddDate(4, 0, 0), decimal.RequireFromString("5000.00"),
		s.now, "test")
	s.Require().NoError(err)
	return card
}

func (s *PostgresCardSuite) TestCreateAndFind() {
	accountID := id.NewAccountID()
	card := s.newCard(accountID)
	s.Require().NoError(s.store.Create(s.ctx, card))

	loaded, err := s.store.FindByID(s.ctx, card.ID)
	s.Require().NoError(err)
	s.Equal(card.ID, loaded.ID)
	s.Equal(models.StateInactive, loaded.State)
	s.Require().NotNil(loaded.ShipmentState)
	s.Equal(models.ShipmentRequested, *loaded.ShipmentState)
	s.True(loaded.DailyLimit.Equal(card.DailyLimit))

	listed, err := s.store.ListByAccount(s.ctx, accountID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *PostgresCardSuite) TestProcessorTokenUniqueness() {
	card := s.newCard(id.NewAccountID())
	s.Require().NoError(s.store.Create(s.ctx, card))

	dup := s.newCard(id.NewAccountID())
	dup.ProcessorToken = card.ProcessorToken
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrAlreadyUsed)
}

func (s *PostgresCardSuite) TestVersionGuard() {
	card := s.newCard(id.NewAccountID())
	s.Require().NoError(s.store.Create(s.ctx, card))
	observed := card.Audit.Version

	s.Require().NoError(card.Activate(s.now, "test"))
	s.Require().NoError(s.store.Update(s.ctx, card, observed))
	s.False(card.Audit.Version.Equal(observed))

	stale := card.Clone()
	s.Require().NoError(stale.SetTemporaryBlock(true, s.now, "test"))
	s.ErrorIs(s.store.Update(s.ctx, stale, observed), sentinel.ErrVersionMismatch)

	missing := s.newCard(id.NewAccountID())
	s.ErrorIs(s.store.Update(s.ctx, missing, observed), sentinel.ErrNotFound)

	current, err := s.store.FindByID(s.ctx, card.ID)
	s.Require().NoError(err)
	s.Equal(models.StateActive, current.State)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"monedero/internal/audit"
	"monedero/internal/card/models"
	"monedero/internal/card/store"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/requestcontext"
)

type CardServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	events  *audit.MemoryStore
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestCardServiceSuite(t *testing.T) {
	suite.Run(t, new(CardServiceSuite))
}

func (s *CardServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.events = audit.NewMemoryStore()
	s.service = New(s.store, WithAuditPublisher(audit.NewPublisher(s.events)))
	s.now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(requestcontext.WithActor(context.Background(), "ops"), s.now)
}

func (s *CardServiceSuite) issueRequest() IssueRequest {
	token, err := NewProcessorToken()
	s.Require().NoError(err)
	return IssueRequest{
		AccountID:      id.NewAccountID(),
		ProcessorToken: token,
		MaskedNumber:   "411111******1111",
		ExpiresOn:      s.now.AddDate(4, 0, 0),
		DailyLimit:     decimal.RequireFromString("5000.00"),
	}
}

func (s *CardServiceSuite) TestIssue() {
	s.Run("physical card starts inactive with shipment requested", func() {
		card, err := s.service.IssuePhysical(s.ctx, s.issueRequest())
		s.Require().NoError(err)
		s.Equal(models.StateInactive, card.State)
		s.Require().NotNil(card.ShipmentState)
		s.Equal(models.ShipmentRequested, *card.ShipmentState)
		s.NotEmpty(card.Audit.Version)
	})

	s.Run("virtual card is active on creation", func() {
		card, err := s.service.IssueVirtual(s.ctx, s.issueRequest())
		s.Require().NoError(err)
		s.Equal(models.StateActive, card.State)
		s.Nil(card.ShipmentState)
	})

	s.Run("duplicate processor token is rejected", func() {
		req := s.issueRequest()
		_, err := s.service.IssuePhysical(s.ctx, req)
		s.Require().NoError(err)

		req.AccountID = id.NewAccountID()
		_, err = s.service.IssuePhysical(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("issuance emits an audit event", func() {
		card, err := s.service.IssueVirtual(s.ctx, s.issueRequest())
		s.Require().NoError(err)

		var found bool
		for _, e := range s.events.All() {
			if e.Action == audit.EventCardIssued && e.EntityID == card.ID.String() {
				found = true
				s.Equal("ops", e.Actor)
			}
		}
		s.True(found)
	})
}

func (s *CardServiceSuite) TestVersionGuard() {
	card, err := s.service.IssuePhysical(s.ctx, s.issueRequest())
	s.Require().NoError(err)

	stale := card.Audit.Version
	activated, err := s.service.Activate(s.ctx, card.ID, stale)
	s.Require().NoError(err)
	s.NotEqual(stale, activated.Audit.Version)

	s.Run("stale token is rejected with conflict", func() {
		_, err := s.service.SetTemporaryBlock(s.ctx, card.ID, stale, true)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		current, err := s.service.Get(s.ctx, card.ID)
		s.Require().NoError(err)
		s.Equal(models.StateActive, current.State)
	})

	s.Run("current token is accepted", func() {
		blocked, err := s.service.SetTemporaryBlock(s.ctx, card.ID, activated.Audit.Version, true)
		s.Require().NoError(err)
		s.Equal(models.StateTempBlocked, blocked.State)
	})
}

func (s *CardServiceSuite) TestConfigureRules() {
	s.Run("rules apply before activation", func() {
		card, err := s.service.IssuePhysical(s.ctx, s.issueRequest())
		s.Require().NoError(err)
		s.Equal(models.StateInactive, card.State)

		updated, err := s.service.ConfigureRules(s.ctx, card.ID, card.Audit.Version, decimal.RequireFromString("1500.00"), true, false)
		s.Require().NoError(err)
		s.True(updated.OnlinePurchases)
		s.False(updated.ATMWithdrawal)
		s.Equal("1500", updated.DailyLimit.String())
	})

	s.Run("rules fail once expiry has passed", func() {
		req := s.issueRequest()
		req.ExpiresOn = s.now.Add(time.Hour)
		card, err := s.service.IssuePhysical(s.ctx, req)
		s.Require().NoError(err)

		later := requestcontext.WithTime(s.ctx, s.now.Add(2*time.Hour))
		_, err = s.service.ConfigureRules(later, card.ID, card.Audit.Version, decimal.RequireFromString("100.00"), false, false)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *CardServiceSuite) TestLazyExpiry() {
	req := s.issueRequest()
	req.ExpiresOn = s.now.Add(time.Hour)
	card, err := s.service.IssueVirtual(s.ctx, req)
	s.Require().NoError(err)

	later := requestcontext.WithTime(s.ctx, s.now.Add(2*time.Hour))

	s.Run("read past expiry records the expired state", func() {
		got, err := s.service.Get(later, card.ID)
		s.Require().NoError(err)
		s.Equal(models.StateExpired, got.State)

		// The marking was persisted, not just computed on the copy.
		stored, err := s.store.FindByID(context.Background(), card.ID)
		s.Require().NoError(err)
		s.Equal(models.StateExpired, stored.State)
	})

	s.Run("second read is a no-op", func() {
		first, err := s.service.Get(later, card.ID)
		s.Require().NoError(err)
		again, err := s.service.Get(later, card.ID)
		s.Require().NoError(err)
		s.Equal(first.Audit.UpdatedAt, again.Audit.UpdatedAt)
		s.Equal(id.Version(first.Audit.Version), id.Version(again.Audit.Version))
	})

	s.Run("mutations on an expired card fail", func() {
		got, err := s.service.Get(later, card.ID)
		s.Require().NoError(err)
		_, err = s.service.Activate(later, card.ID, got.Audit.Version)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *CardServiceSuite) TestShipment() {
	s.Run("physical card tracks delivery", func() {
		card, err := s.service.IssuePhysical(s.ctx, s.issueRequest())
		s.Require().NoError(err)

		tracking := "TRK-102938"
		inTransit, err := s.service.UpdateShipment(s.ctx, card.ID, card.Audit.Version, models.ShipmentInTransit, &tracking)
		s.Require().NoError(err)
		s.Equal(models.ShipmentInTransit, *inTransit.ShipmentState)

		delivered, err := s.service.UpdateShipment(s.ctx, card.ID, inTransit.Audit.Version, models.ShipmentDelivered, &tracking)
		s.Require().NoError(err)
		s.Equal(models.ShipmentDelivered, *delivered.ShipmentState)
	})

	s.Run("virtual card does not ship", func() {
		card, err := s.service.IssueVirtual(s.ctx, s.issueRequest())
		s.Require().NoError(err)
		_, err = s.service.UpdateShipment(s.ctx, card.ID, card.Audit.Version, models.ShipmentInTransit, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *CardServiceSuite) TestCancel() {
	card, err := s.service.IssueVirtual(s.ctx, s.issueRequest())
	s.Require().NoError(err)

	canceled, err := s.service.Cancel(s.ctx, card.ID, card.Audit.Version, models.CancelStolen)
	s.Require().NoError(err)
	s.Equal(models.StateCanceledStolen, canceled.State)

	_, err = s.service.Activate(s.ctx, card.ID, canceled.Audit.Version)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *CardServiceSuite) TestListByAccount() {
	req := s.issueRequest()
	_, err := s.service.IssuePhysical(s.ctx, req)
	s.Require().NoError(err)

	second := s.issueRequest()
	second.AccountID = req.AccountID
	_, err = s.service.IssueVirtual(s.ctx, second)
	s.Require().NoError(err)

	cards, err := s.service.ListByAccount(s.ctx, req.AccountID)
	s.Require().NoError(err)
	s.Len(cards, 2)
}

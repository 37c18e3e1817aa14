//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"monedero/internal/user/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/testutil/containers"
)

type PostgresUserSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
	now   time.Time
}

func TestPostgresUserSuite(t *testing.T) {
	suite.Run(t, new(PostgresUserSuite))
}

func (s *PostgresUserSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.Pool)
	s.ctx = context.Background()
	s.now = time.Date(2026, time.May, 5, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresUserSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
}

func (s *PostgresUserSuite) newUser(number string) *models.User {
	user, err := models.NewUser(id.NewUserID(), "+52", number, s.now, "test")
	s.Require().NoError(err)
	return user
}

func (s *PostgresUserSuite) TestCreateAndFind() {
	user := s.newUser("5511111111")
	s.Require().NoError(s.store.Create(s.ctx, user))
	s.NotEmpty(user.Audit.Version)

	byID, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.ID, byID.ID)
	s.Equal(models.StagePreRegistration, byID.Stage)
	s.True(byID.Audit.Version.Equal(user.Audit.Version))

	byPhone, err := s.store.FindByPhone(s.ctx, "+52", "5511111111")
	s.Require().NoError(err)
	s.Equal(user.ID, byPhone.ID)

	_, err = s.store.FindByID(s.ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserSuite) TestPhoneUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("5522222222")))
	err := s.store.Create(s.ctx, s.newUser("5522222222"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresUserSuite) TestVersionGuard() {
	user := s.newUser("5533333333")
	s.Require().NoError(s.store.Create(s.ctx, user))
	observed := user.Audit.Version

	s.Require().NoError(user.AdvanceFrom(models.StagePreRegistration, s.now, "test"))
	s.Require().NoError(s.store.Update(s.ctx, user, observed))
	s.False(user.Audit.Version.Equal(observed))

	stale := user.Clone()
	err := s.store.Update(s.ctx, stale, observed)
	s.ErrorIs(err, sentinel.ErrVersionMismatch)

	missing := s.newUser("5544444444")
	err = s.store.Update(s.ctx, missing, observed)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserSuite) TestCollectionsRoundTrip() {
	user := s.newUser("5555555555")
	_, err := user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "dispatch-1", s.now, "test")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, user))

	loaded, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().Len(loaded.Verifications, 1)
	s.Equal(models.ChannelSMS, loaded.Verifications[0].Channel)
	s.Equal("dispatch-1", loaded.Verifications[0].DispatchID)
}

func (s *PostgresUserSuite) TestFindByEmailCaseInsensitive() {
	user := s.newUser("5566666666")
	s.Require().NoError(s.store.Create(s.ctx, user))

	s.Require().NoError(user.AdvanceFrom(models.StagePreRegistration, s.now, "test"))
	s.Require().NoError(user.AdvanceFrom(models.StagePhoneConfirmed, s.now, "test"))
	s.Require().NoError(user.RegisterEmail("Valeria@Example.MX", s.now, "test"))
	s.Require().NoError(s.store.Update(s.ctx, user, user.Audit.Version))

	found, err := s.store.FindByEmail(s.ctx, "valeria@example.mx")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)
}

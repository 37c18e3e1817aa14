//go:build integration

package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	rc    *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.rc = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.rc.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.rc.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) TestRecordFailureIncrements() {
	for want := 1; want <= 3; want++ {
		got, err := s.store.RecordFailure(s.ctx, "login:user-1", time.Minute)
		s.Require().NoError(err)
		s.Equal(want, got)
	}

	count, err := s.store.Failures(s.ctx, "login:user-1")
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *RedisStoreSuite) TestKeysAreIndependent() {
	_, err := s.store.RecordFailure(s.ctx, "login:user-1", time.Minute)
	s.Require().NoError(err)

	count, err := s.store.Failures(s.ctx, "login:user-2")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *RedisStoreSuite) TestClear() {
	_, err := s.store.RecordFailure(s.ctx, "login:user-1", time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Clear(s.ctx, "login:user-1"))

	count, err := s.store.Failures(s.ctx, "login:user-1")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *RedisStoreSuite) TestWindowExpiry() {
	_, err := s.store.RecordFailure(s.ctx, "login:user-1", 500*time.Millisecond)
	s.Require().NoError(err)

	s.Require().Eventually(func() bool {
		count, err := s.store.Failures(s.ctx, "login:user-1")
		return err == nil && count == 0
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisStoreSuite) TestGuardLocksThroughRedis() {
	guard := New(s.store, WithMaxAttempts(2), WithWindow(time.Minute))

	s.Require().NoError(guard.Check(s.ctx, "login:user-1"))
	s.Require().NoError(guard.RecordFailure(s.ctx, "login:user-1"))
	s.True(dErrors.HasCode(guard.RecordFailure(s.ctx, "login:user-1"), dErrors.CodeLocked))
	s.True(dErrors.HasCode(guard.Check(s.ctx, "login:user-1"), dErrors.CodeLocked))

	s.Require().NoError(guard.Clear(s.ctx, "login:user-1"))
	s.NoError(guard.Check(s.ctx, "login:user-1"))
}
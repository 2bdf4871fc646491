//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"intromarket/internal/settings/models"
	"intromarket/internal/settings/store"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/testutil/containers"
)

type PostgresSettingsSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresSettingsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSettingsSuite))
}

func (s *PostgresSettingsSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresSettingsSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "system_settings"))
}

func (s *PostgresSettingsSuite) TestSeededDefaults() {
	rows, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Equal(models.Defaults(), models.FromRows(rows))
}

// TestConcurrentVersionGuard verifies that only one of many writers holding
// the same version wins.
func (s *PostgresSettingsSuite) TestConcurrentVersionGuard() {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Update(ctx, models.KeyExpiryDays, "9", 1, "ops", time.Now())
			switch {
			case err == nil:
				wins.Add(1)
			case err == sentinel.ErrConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}

func (s *PostgresSettingsSuite) TestUnknownKey() {
	_, err := s.store.Update(context.Background(), models.Key("nope"), "1", 1, "ops", time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

//go:build integration

package relay_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "intromarket/pkg/platform/audit"
	"intromarket/pkg/platform/audit/relay"
	"intromarket/pkg/platform/audit/store/postgres"
	"intromarket/pkg/platform/tx"
	"intromarket/pkg/testutil/containers"
)

const topic = "intromarket.audit.test"

type KafkaRelaySuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	redpanda  *containers.RedpandaContainer
	store     *postgres.Store
	publisher *relay.KafkaPublisher
}

func TestKafkaRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaRelaySuite))
}

func (s *KafkaRelaySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	s.store = postgres.New(s.postgres.DB)

	publisher, err := relay.NewKafkaPublisher([]string{s.redpanda.Broker}, topic)
	s.Require().NoError(err)
	s.publisher = publisher
}

func (s *KafkaRelaySuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *KafkaRelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

// Justification: rows leave the outbox only after the broker acknowledges
// them, and a second drain finds nothing left to publish.
func (s *KafkaRelaySuite) TestDrainPublishesOutbox() {
	ctx := context.Background()
	emitter := audit.NewEmitter(s.store, nil)
	s.Require().NoError(emitter.Emit(ctx, audit.EventIntroductionSent, audit.Event{Subject: "req-1", ActorID: "hr-1"}))
	s.Require().NoError(emitter.Emit(ctx, audit.EventIntroductionAccepted, audit.Event{Subject: "req-1", ActorID: "pro-1"}))

	r := relay.New(s.store, tx.NewRunner(s.postgres.DB, 5*time.Second), s.publisher, relay.WithBatchSize(10))
	n, err := r.Drain(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = r.Drain(ctx)
	s.Require().NoError(err)
	s.Zero(n)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var actions []string
	for len(actions) < 2 {
		fetches := consumer.PollFetches(pollCtx)
		s.Require().NoError(pollCtx.Err(), "timed out waiting for audit records")
		fetches.EachRecord(func(rec *kgo.Record) {
			var body map[string]string
			s.Require().NoError(json.Unmarshal(rec.Value, &body))
			s.Equal("req-1", string(rec.Key))
			actions = append(actions, body["action"])
		})
	}
	s.ElementsMatch([]string{"introduction_sent", "introduction_accepted"}, actions)
}

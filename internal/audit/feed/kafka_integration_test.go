//go:build integration

package feed_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"trellis/internal/audit"
	"trellis/internal/audit/feed"
	id "trellis/pkg/domain"
	"trellis/pkg/testutil/containers"
)

func (s *RelaySuite) TestKafkaPublisherDeliversKeyedMessages() {
	kafka := containers.GetManager().GetKafka(s.T())
	topic := "task-events-" + uuid.NewString()
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	publisher, err := feed.NewKafkaPublisher(kafka.Brokers, topic)
	s.Require().NoError(err)
	defer publisher.Close()
	s.Require().NoError(publisher.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(publisher.EnsureTopic(ctx, 1, 1), "existing topic is not an error")
	s.Require().NoError(publisher.Health(ctx))

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, d := range []string{"Task Launch was created", "Assigned to bob"} {
		s.Require().NoError(s.outbox.Enqueue(ctx, audit.Event{
			ID: id.EventID(uuid.New()), TaskID: s.task, Description: d, OccurredAt: at,
		}))
	}
	n, err := feed.NewRelay(s.outbox, publisher, s.runner).RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kafka.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []feed.Message
	for len(got) < 2 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		fetches.EachRecord(func(r *kgo.Record) {
			s.Equal(s.task.String(), string(r.Key))
			var msg feed.Message
			s.Require().NoError(json.Unmarshal(r.Value, &msg))
			got = append(got, msg)
		})
	}
	s.Require().Len(got, 2)
	s.Equal("Task Launch was created", got[0].Description)
	s.Equal("Assigned to bob", got[1].Description)
	s.Less(got[0].Seq, got[1].Seq)
}

package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trellis/internal/audit"
	eventstore "trellis/internal/audit/store/event"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/requestcontext"
)

type RecorderSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	recorder *audit.Recorder
	task     id.TaskID
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.recorder = audit.NewRecorder(eventstore.NewInMemory())
	s.task = id.TaskID(uuid.New())
}

func (s *RecorderSuite) TestZeroTimeUsesRequestTime() {
	e, err := s.recorder.Record(s.ctx, s.task, audit.TaskCreated("Design"), time.Time{})
	s.Require().NoError(err)
	s.Equal(s.now, e.OccurredAt)
}

func (s *RecorderSuite) TestTimestampsNeverGoBackwards() {
	_, err := s.recorder.Record(s.ctx, s.task, "first", s.now)
	s.Require().NoError(err)

	e, err := s.recorder.Record(s.ctx, s.task, "second", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(s.now, e.OccurredAt)

	other := id.TaskID(uuid.New())
	e, err = s.recorder.Record(s.ctx, other, "elsewhere", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(s.now.Add(-time.Hour), e.OccurredAt, "clamping is per task")
}

func (s *RecorderSuite) TestSameTimestampKeepsInsertionOrder() {
	for _, desc := range []string{"a", "b", "c"} {
		_, err := s.recorder.Record(s.ctx, s.task, desc, s.now)
		s.Require().NoError(err)
	}
	events, err := s.recorder.EventsOf(s.ctx, s.task)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal([]string{"a", "b", "c"}, []string{events[0].Description, events[1].Description, events[2].Description})
	s.Less(events[0].Seq, events[1].Seq)
}

func (s *RecorderSuite) TestEmptyDescriptionRejected() {
	_, err := s.recorder.Record(s.ctx, s.task, "", s.now)
	s.Error(err)
}

func (s *RecorderSuite) TestDelete() {
	other := id.TaskID(uuid.New())
	third := id.TaskID(uuid.New())
	for _, taskID := range []id.TaskID{s.task, other, third} {
		_, err := s.recorder.Record(s.ctx, taskID, "created", s.now)
		s.Require().NoError(err)
	}

	n, err := s.recorder.DeleteAllOf(s.ctx, s.task)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.recorder.DeleteAllOfTasks(s.ctx, []id.TaskID{other, third})
	s.Require().NoError(err)
	s.Equal(2, n)

	for _, taskID := range []id.TaskID{s.task, other, third} {
		events, err := s.recorder.EventsOf(s.ctx, taskID)
		s.Require().NoError(err)
		s.Empty(events)
	}
}

type outboxStub struct {
	events []audit.Event
	err    error
}

func (o *outboxStub) Enqueue(_ context.Context, e audit.Event) error {
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, e)
	return nil
}

func (s *RecorderSuite) TestOutboxReceivesRecordedEvents() {
	outbox := &outboxStub{}
	recorder := audit.NewRecorder(eventstore.NewInMemory(), audit.WithOutbox(outbox))

	e, err := recorder.Record(s.ctx, s.task, audit.TaskCreated("Design"), time.Time{})
	s.Require().NoError(err)

	s.Require().Len(outbox.events, 1)
	s.Equal(e.ID, outbox.events[0].ID)
	s.Equal(e.Seq, outbox.events[0].Seq)
	s.Equal("Task Design was created", outbox.events[0].Description)
}

func (s *RecorderSuite) TestOutboxFailureFailsRecord() {
	recorder := audit.NewRecorder(eventstore.NewInMemory(), audit.WithOutbox(&outboxStub{err: errors.New("disk full")}))

	_, err := recorder.Record(s.ctx, s.task, "first", s.now)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

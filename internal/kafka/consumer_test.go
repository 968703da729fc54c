package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *MockReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockReader) Close() error {
	return m.Called().Error(0)
}

func newTestConsumer(r messageReader) *Consumer {
	return &Consumer{reader: r, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func eventMessage(t *testing.T, offset int64, event domain.HoldEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.BookingID), Value: value, Offset: offset}
}

var errStop = errors.New("stop")

func TestConsumer_HandlesThenCommits(t *testing.T) {
	reader := &MockReader{}
	event := domain.HoldEvent{BookingID: "b-1", Outcome: domain.OutcomeCaptured, Amount: domain.MustMoney(4000, "USD")}
	msg := eventMessage(t, 3, event)
	reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()
	reader.On("CommitMessages", mock.Anything, []kafka.Message{msg}).Return(nil).Once()
	reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, errStop).Once()

	var handled []domain.HoldEvent
	err := newTestConsumer(reader).Consume(context.Background(), func(_ context.Context, e domain.HoldEvent) error {
		handled = append(handled, e)
		return nil
	})

	assert.ErrorIs(t, err, errStop)
	require.Len(t, handled, 1)
	assert.Equal(t, "b-1", handled[0].BookingID)
	assert.Equal(t, domain.OutcomeCaptured, handled[0].Outcome)
	reader.AssertExpectations(t)
}

func TestConsumer_SkipsMalformedMessage(t *testing.T) {
	reader := &MockReader{}
	bad := kafka.Message{Value: []byte(`{"amount":`), Offset: 7}
	reader.On("FetchMessage", mock.Anything).Return(bad, nil).Once()
	reader.On("CommitMessages", mock.Anything, []kafka.Message{bad}).Return(nil).Once()
	reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, errStop).Once()

	called := false
	err := newTestConsumer(reader).Consume(context.Background(), func(context.Context, domain.HoldEvent) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, errStop)
	assert.False(t, called)
	reader.AssertExpectations(t)
}

func TestConsumer_HandlerFailureLeavesOffset(t *testing.T) {
	reader := &MockReader{}
	msg := eventMessage(t, 9, domain.HoldEvent{BookingID: "b-2", Outcome: domain.OutcomeVoided})
	reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()

	err := newTestConsumer(reader).Consume(context.Background(), func(context.Context, domain.HoldEvent) error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "b-2")
	reader.AssertNotCalled(t, "CommitMessages", mock.Anything, mock.Anything)
}

func TestConsumer_StopsQuietlyOnCancel(t *testing.T) {
	reader := &MockReader{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader.On("FetchMessage", ctx).Return(kafka.Message{}, context.Canceled).Once()

	assert.NoError(t, newTestConsumer(reader).Consume(ctx, func(context.Context, domain.HoldEvent) error { return nil }))
}

func TestDecodeHoldEvent_RequiresBookingAndOutcome(t *testing.T) {
	_, err := DecodeHoldEvent(kafka.Message{Value: []byte(`{"booking_id":"b-1"}`), Offset: 2})
	assert.ErrorContains(t, err, "outcome")
}

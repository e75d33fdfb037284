package queue

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "testing"
    "time"

    "github.com/golang/mock/gomock"
    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/fairdraw/internal/model"
    mock_service "github.com/iliyamo/fairdraw/internal/service/mocks"
)

func newTestConsumer(t *testing.T) (*Consumer, *mock_service.MockInbox, *mock_service.MockDeliveryLog) {
    t.Helper()
    ctrl := gomock.NewController(t)
    inbox := mock_service.NewMockInbox(ctrl)
    audit := mock_service.NewMockDeliveryLog(ctrl)
    logger := log.New("test")
    logger.SetOutput(io.Discard)
    return NewConsumer("amqp://unused", "", inbox, audit, logger), inbox, audit
}

func TestConsumer_HandleDeliversAndAudits(t *testing.T) {
    c, inbox, audit := newTestConsumer(t)

    created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
    n := &model.Notification{
        ID:        "n-1",
        Type:      model.NotificationWin,
        EventID:   "ev-1",
        Title:     "Congratulations! You won Swim Lessons!",
        CreatedAt: created,
    }
    body, err := json.Marshal(newMessage("42", n))
    if err != nil {
        t.Fatal(err)
    }

    inbox.EXPECT().
        AppendOrCreate(gomock.Any(), "42", gomock.Any()).
        DoAndReturn(func(_ context.Context, _ string, got *model.Notification) error {
            if got.ID != n.ID || got.Type != n.Type || got.Title != n.Title || !got.CreatedAt.Equal(created) {
                t.Errorf("unexpected notification %+v", got)
            }
            return nil
        })
    audit.EXPECT().Record(gomock.Any(), model.NotificationLogEntry{
        RecipientID: "42", EventID: "ev-1", EventTitle: n.Title, Type: model.NotificationWin,
    }).Return(nil)

    if err := c.handle(context.Background(), body); err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
}

func TestConsumer_HandleRejectsMalformed(t *testing.T) {
    c, inbox, _ := newTestConsumer(t)
    inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

    for _, body := range []string{`{not json`, `{"entrant_id":"","notification_id":"n-1"}`} {
        err := c.handle(context.Background(), []byte(body))
        var bad *malformedError
        if !errors.As(err, &bad) {
            t.Errorf("body %s: expected malformedError, got %v", body, err)
        }
    }
}

func TestConsumer_HandleSurfacesStoreFailure(t *testing.T) {
    c, inbox, audit := newTestConsumer(t)

    wantErr := errors.New("db down")
    inbox.EXPECT().AppendOrCreate(gomock.Any(), "42", gomock.Any()).Return(wantErr)
    audit.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)

    body := []byte(`{"entrant_id":"42","notification_id":"n-1","type":"OTHER","event_id":"ev-1","title":"Notification"}`)
    err := c.handle(context.Background(), body)
    if !errors.Is(err, wantErr) {
        t.Fatalf("Expected %v, got %v", wantErr, err)
    }
    var bad *malformedError
    if errors.As(err, &bad) {
        t.Fatal("Expected a store failure not to be treated as malformed")
    }
}

// ackRecorder captures how a delivery was settled.
type ackRecorder struct {
    acked, nacked, requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
    a.acked = true
    return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
    a.nacked, a.requeued = true, requeue
    return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestConsumer_SettleRequeuesOnce(t *testing.T) {
    c, _, _ := newTestConsumer(t)
    storeErr := errors.New("append to inbox: connection refused")

    tests := []struct {
        name        string
        err         error
        redelivered bool
        acked       bool
        requeued    bool
    }{
        {"handled", nil, false, true, false},
        {"first store failure", storeErr, false, false, true},
        {"second store failure", storeErr, true, false, false},
        {"malformed", &malformedError{errors.New("bad json")}, false, false, false},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            ack := &ackRecorder{}
            c.settle(amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Redelivered: tt.redelivered}, tt.err)
            if ack.acked != tt.acked || ack.nacked == tt.acked || ack.requeued != tt.requeued {
                t.Errorf("Expected acked=%v requeued=%v, got %+v", tt.acked, tt.requeued, *ack)
            }
        })
    }
}

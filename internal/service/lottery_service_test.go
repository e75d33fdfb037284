package service_test

import (
    "context"
    "errors"
    "fmt"
    "reflect"
    "sort"
    "strings"
    "sync"
    "testing"

    "github.com/golang/mock/gomock"

    "github.com/iliyamo/fairdraw/internal/lottery"
    "github.com/iliyamo/fairdraw/internal/model"
    "github.com/iliyamo/fairdraw/internal/repository"
    "github.com/iliyamo/fairdraw/internal/service"
    mock_service "github.com/iliyamo/fairdraw/internal/service/mocks"
)

const organizer = "7"

type fixture struct {
    store *mock_service.MockEventStore
    inbox *mock_service.MockInbox
    prefs *mock_service.MockPreferences
    svc   *service.LotteryService
}

func newFixture(t *testing.T, opts service.Options) fixture {
    t.Helper()
    ctrl := gomock.NewController(t)
    f := fixture{
        store: mock_service.NewMockEventStore(ctrl),
        inbox: mock_service.NewMockInbox(ctrl),
        prefs: mock_service.NewMockPreferences(ctrl),
    }
    d := service.NewDispatcher(f.inbox, nil, quietLogger())
    f.svc = service.NewLotteryService(f.store, d, f.prefs, nil, lottery.Locked(lottery.NewRNG(11)), quietLogger(), opts)
    return f
}

func swimEvent(capacity int, waiting, invited, enrolled []string) *model.Event {
    ev := model.NewEvent("ev-1", "Swim Lessons", capacity)
    ev.OrganizerID = organizer
    ev.Version = 5
    ev.Waiting = model.NewIDSet(waiting...)
    ev.Invited = model.NewIDSet(invited...)
    ev.Enrolled = model.NewIDSet(enrolled...)
    return ev
}

// loadsOf makes every Load return a fresh copy of ev, the way the
// database does.
func loadsOf(ev *model.Event) func(context.Context, string) (*model.Event, error) {
    return func(context.Context, string) (*model.Event, error) { return ev.Clone(), nil }
}

type inboxRecorder struct {
    mu   sync.Mutex
    sent map[string]model.NotificationType
}

func (r *inboxRecorder) append(_ context.Context, id string, n *model.Notification) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.sent == nil {
        r.sent = map[string]model.NotificationType{}
    }
    r.sent[id] = n.Type
    return nil
}

func TestLotteryService_DrawNotifiesWinners(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"A", "B"}, nil, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil)
    rec := &inboxRecorder{}
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(rec.append).Times(1)

    sum, err := f.svc.Draw(context.Background(), organizer, "ev-1")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if sum.Result.Outcome != lottery.DrawDrawn || len(sum.Result.Winners) != 1 {
        t.Fatalf("unexpected result: %+v", sum.Result)
    }
    winner := sum.Result.Winners[0]
    if rec.sent[winner] != model.NotificationWin || len(rec.sent) != 1 {
        t.Fatalf("expected a single WIN to %s, got %v", winner, rec.sent)
    }
    if !sum.Report.AllDelivered() {
        t.Fatalf("expected all deliveries to succeed: %+v", sum.Report)
    }
}

func TestLotteryService_DrawNotifiesLosersWhenEnabled(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 1, NotifyLosers: true})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"A", "B", "C"}, nil, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil)
    rec := &inboxRecorder{}
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(rec.append).Times(3)

    sum, err := f.svc.Draw(context.Background(), organizer, "ev-1")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    wins, losses := 0, 0
    for id, typ := range rec.sent {
        switch typ {
        case model.NotificationWin:
            wins++
            if id != sum.Result.Winners[0] {
                t.Errorf("WIN sent to %s, winner is %s", id, sum.Result.Winners[0])
            }
        case model.NotificationLose:
            losses++
        }
    }
    if wins != 1 || losses != 2 {
        t.Fatalf("expected 1 WIN and 2 LOSE, got %d and %d", wins, losses)
    }
}

func TestLotteryService_DrawWithoutSpotsWritesNothing(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"A"}, []string{"B"}, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Times(0)
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

    sum, err := f.svc.Draw(context.Background(), organizer, "ev-1")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if sum.Result.Outcome != lottery.DrawNoSpots || !reflect.DeepEqual(sum.Result.Invited, []string{"B"}) {
        t.Fatalf("unexpected result: %+v", sum.Result)
    }
}

func TestLotteryService_DrawRequiresOwner(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"A"}, nil, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Times(0)

    _, err := f.svc.Draw(context.Background(), "someone-else", "ev-1")
    if !errors.Is(err, repository.ErrForbidden) {
        t.Fatalf("expected ErrForbidden, got %v", err)
    }
}

func TestLotteryService_RetriesAfterVersionConflict(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    stale := swimEvent(2, []string{"A", "B"}, nil, nil)
    fresh := swimEvent(2, []string{"A", "B", "C"}, nil, []string{"X"})
    fresh.Version = 6

    gomock.InOrder(
        f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(stale)),
        f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(repository.ErrVersionConflict),
        f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(fresh)),
        f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev *model.Event) error {
            if ev.Version != 6 {
                t.Errorf("expected the retry to write on top of version 6, got %d", ev.Version)
            }
            return nil
        }),
    )
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

    sum, err := f.svc.Draw(context.Background(), organizer, "ev-1")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    // fresh state has one enrolled entrant, so only one spot is left
    if len(sum.Result.Winners) != 1 {
        t.Fatalf("expected the draw to be re-applied to fresh state, got %+v", sum.Result)
    }
}

func TestLotteryService_GivesUpAfterConfiguredAttempts(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 2})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"A"}, nil, nil))).Times(2)
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(repository.ErrVersionConflict).Times(2)
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

    _, err := f.svc.Draw(context.Background(), organizer, "ev-1")
    if !errors.Is(err, repository.ErrVersionConflict) {
        t.Fatalf("expected ErrVersionConflict, got %v", err)
    }
}

func TestLotteryService_DeclineNotifiesReplacementOnly(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"B"}, []string{"A"}, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil)
    rec := &inboxRecorder{}
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(rec.append).Times(1)

    sum, err := f.svc.Decline(context.Background(), "ev-1", "A")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if sum.Result.Outcome != lottery.ReplaceReplaced || sum.Result.Winner != "B" {
        t.Fatalf("unexpected result: %+v", sum.Result)
    }
    if !reflect.DeepEqual(rec.sent, map[string]model.NotificationType{"B": model.NotificationWin}) {
        t.Fatalf("expected a WIN to B only, got %v", rec.sent)
    }
    if !sum.Event.Cancelled.Has("A") {
        t.Fatalf("expected A to be cancelled")
    }
}

func TestLotteryService_DeclineWithoutInvitationIsNoop(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, []string{"B"}, nil, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Times(0)
    f.inbox.EXPECT().AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

    sum, err := f.svc.Decline(context.Background(), "ev-1", "B")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if sum.Result.Outcome != lottery.ReplaceNotInvited {
        t.Fatalf("unexpected outcome %q", sum.Result.Outcome)
    }
}

func TestLotteryService_AcceptIsIdempotent(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    gomock.InOrder(
        f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, nil, []string{"X"}, nil))),
        f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil),
        f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, nil, nil, []string{"X"}))),
    )

    ev, accepted, err := f.svc.Accept(context.Background(), "ev-1", "X")
    if err != nil || !accepted || !ev.Enrolled.Has("X") {
        t.Fatalf("first accept: accepted=%v err=%v", accepted, err)
    }
    ev, accepted, err = f.svc.Accept(context.Background(), "ev-1", "X")
    if err != nil || accepted || !ev.Enrolled.Has("X") {
        t.Fatalf("second accept: accepted=%v err=%v", accepted, err)
    }
}

func TestLotteryService_JoinClosedEvent(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    closed := swimEvent(1, nil, nil, nil)
    closed.State = model.EventClosed
    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(closed))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Times(0)

    if _, err := f.svc.Join(context.Background(), "ev-1", "42", nil); !errors.Is(err, service.ErrEventClosed) {
        t.Fatalf("expected ErrEventClosed, got %v", err)
    }
}

func TestLotteryService_JoinSendsWaitlistNoticeWhenEnabled(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3, NotifyWaitlisted: true})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, nil, nil, nil)))
    f.store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil)
    f.inbox.EXPECT().
        AppendOrCreate(gomock.Any(), "42", gomock.Any()).
        DoAndReturn(func(_ context.Context, _ string, n *model.Notification) error {
            if n.Type != model.NotificationWaitlist || n.Title != "You have been added to the waitlist for Swim Lessons." {
                t.Errorf("unexpected notice %+v", n)
            }
            return nil
        })

    ev, err := f.svc.Join(context.Background(), "ev-1", "42", &model.Location{Lat: 10, Lng: 20})
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if !ev.Waiting.Has("42") {
        t.Fatalf("expected 42 to be waiting")
    }
}

// warnRecorder keeps the warnings written by the service.
type warnRecorder struct {
    mu    sync.Mutex
    warns []string
}

func (w *warnRecorder) Infof(string, ...interface{})  {}
func (w *warnRecorder) Errorf(string, ...interface{}) {}
func (w *warnRecorder) Warnf(format string, args ...interface{}) {
    w.mu.Lock()
    defer w.mu.Unlock()
    w.warns = append(w.warns, fmt.Sprintf(format, args...))
}

func TestLotteryService_JoinSurvivesFailedWaitlistNotice(t *testing.T) {
    t.Parallel()
    ctrl := gomock.NewController(t)
    store := mock_service.NewMockEventStore(ctrl)
    inbox := mock_service.NewMockInbox(ctrl)
    logs := &warnRecorder{}
    svc := service.NewLotteryService(store, service.NewDispatcher(inbox, nil, quietLogger()), nil, nil,
        lottery.Locked(lottery.NewRNG(1)), logs, service.Options{CASAttempts: 1, NotifyWaitlisted: true})

    store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(1, nil, nil, nil)))
    store.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil)
    inbox.EXPECT().AppendOrCreate(gomock.Any(), "42", gomock.Any()).Return(errors.New("inbox unavailable"))

    ev, err := svc.Join(context.Background(), "ev-1", "42", nil)
    if err != nil {
        t.Fatalf("expected the join to stand, got %v", err)
    }
    if !ev.Waiting.Has("42") {
        t.Fatal("expected 42 to be waiting")
    }
    if len(logs.warns) != 1 || !strings.Contains(logs.warns[0], "inbox unavailable") {
        t.Fatalf("expected one warning about the failed notice, got %q", logs.warns)
    }
}

func TestLotteryService_BroadcastSkipsDisabledEntrants(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(5, []string{"1", "2", "3"}, nil, nil)))
    f.prefs.EXPECT().
        NotificationsEnabled(gomock.Any(), []string{"1", "2", "3"}).
        Return(map[string]bool{"1": true, "2": false, "3": true}, nil)

    var mu sync.Mutex
    var got []string
    f.inbox.EXPECT().
        AppendOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).
        DoAndReturn(func(_ context.Context, id string, n *model.Notification) error {
            if n.Type != model.NotificationOther || n.Message != "Pool opens at 9" || n.Title != "Notification" {
                t.Errorf("unexpected notice %+v", n)
            }
            mu.Lock()
            got = append(got, id)
            mu.Unlock()
            return nil
        }).
        Times(2)

    sum, err := f.svc.Broadcast(context.Background(), organizer, "ev-1", service.AudienceWaiting, "", "Pool opens at 9")
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    sort.Strings(got)
    if !reflect.DeepEqual(got, []string{"1", "3"}) || !reflect.DeepEqual(sum.Skipped, []string{"2"}) {
        t.Fatalf("sent=%v skipped=%v", got, sum.Skipped)
    }
}

func TestLotteryService_BroadcastRejectsUnknownAudience(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(swimEvent(5, nil, nil, nil)))

    _, err := f.svc.Broadcast(context.Background(), organizer, "ev-1", service.Audience("EVERYONE"), "", "hi")
    if !errors.Is(err, service.ErrInvalidAudience) {
        t.Fatalf("expected ErrInvalidAudience, got %v", err)
    }
}

func TestLotteryService_WaitlistMap(t *testing.T) {
    t.Parallel()
    f := newFixture(t, service.Options{CASAttempts: 3})

    ev := swimEvent(5, []string{"e1", "e2", "e3"}, nil, nil)
    ev.WaitlistLocations = map[string]*model.Location{
        "e1": {Lat: 10.001, Lng: 20.002},
        "e2": {Lat: 10.004, Lng: 20.006},
        "e3": {Lat: 30.0, Lng: 40.0},
        "e4": {Lat: 10.5, Lng: 20.5},
    }
    f.store.EXPECT().Load(gomock.Any(), "ev-1").DoAndReturn(loadsOf(ev)).Times(2)

    cells, err := f.svc.WaitlistMap(context.Background(), organizer, "ev-1", -1)
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if len(cells) != 3 || cells[0].Count != 2 {
        t.Fatalf("unexpected cells at the default resolution: %+v", cells)
    }

    cells, err = f.svc.WaitlistMap(context.Background(), organizer, "ev-1", 0)
    if err != nil {
        t.Fatalf("unexpected err: %v", err)
    }
    if len(cells) != 2 || cells[0].Count != 3 {
        t.Fatalf("expected whole degree cells at resolution 0, got %+v", cells)
    }
}

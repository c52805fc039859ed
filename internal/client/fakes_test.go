package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/proto"
)

type fakeFeed struct {
	mu        sync.Mutex
	nextID    int
	subs      map[int]func(proto.Envelope)
	connects  map[int]func()
	log       []string
	maxActive int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[int]func(proto.Envelope)), connects: make(map[int]func())}
}

func (f *fakeFeed) Subscribe(fn func(proto.Envelope)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.log = append(f.log, fmt.Sprintf("sub:%d", id))
	f.maxActive = max(f.maxActive, len(f.subs))
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			f.log = append(f.log, fmt.Sprintf("unsub:%d", id))
		}
	}
}

func (f *fakeFeed) OnConnect(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.connects[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.connects, id)
		f.mu.Unlock()
	}
}

func (f *fakeFeed) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *fakeFeed) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// handlers copies the current subscribers the way LiveChannel does before
// dispatching a frame.
func (f *fakeFeed) handlers() []func(proto.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]func(proto.Envelope), 0, len(f.subs))
	for _, fn := range f.subs {
		out = append(out, fn)
	}
	return out
}

func (f *fakeFeed) emit(env proto.Envelope) {
	for _, fn := range f.handlers() {
		fn(env)
	}
}

func (f *fakeFeed) connect() {
	f.mu.Lock()
	handlers := make([]func(), 0, len(f.connects))
	for _, fn := range f.connects {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (f *fakeFeed) pushMessage(t *testing.T, m proto.Message) {
	t.Helper()
	f.emit(messageEnvelope(t, m))
}

func (f *fakeFeed) pushOnline(t *testing.T, users ...string) {
	t.Helper()
	f.emit(onlineEnvelope(t, users...))
}

func messageEnvelope(t *testing.T, m proto.Message) proto.Envelope {
	t.Helper()
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	return proto.Envelope{Type: proto.OutboundTypeEvent, Event: proto.EventNewMessage, Data: raw}
}

func onlineEnvelope(t *testing.T, users ...string) proto.Envelope {
	t.Helper()
	raw, err := json.Marshal(users)
	if err != nil {
		t.Fatalf("marshal users: %v", err)
	}
	return proto.Envelope{Type: proto.OutboundTypeEvent, Event: proto.EventOnlineUsers, Data: raw}
}

type fakeBackend struct {
	mu       sync.Mutex
	me       string
	history  map[string][]proto.Message
	gates    map[string]chan struct{}
	failNext error
	peers    []proto.User
	unseen   map[string]int
	marked   []string
	sends    int
	nextID   int
	calls    map[string]int
}

func newFakeBackend(me string) *fakeBackend {
	return &fakeBackend{
		me:      me,
		history: make(map[string][]proto.Message),
		gates:   make(map[string]chan struct{}),
		unseen:  make(map[string]int),
		calls:   make(map[string]int),
	}
}

// gate makes the next History(peerID) block until the returned func is called.
func (b *fakeBackend) gate(peerID string) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[peerID] = ch
	return func() { close(ch) }
}

func (b *fakeBackend) takeFailure() error {
	err := b.failNext
	b.failNext = nil
	return err
}

func (b *fakeBackend) Peers(context.Context) ([]proto.User, map[string]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["peers"]++
	if err := b.takeFailure(); err != nil {
		return nil, nil, err
	}
	unseen := make(map[string]int, len(b.unseen))
	for k, v := range b.unseen {
		unseen[k] = v
	}
	return append([]proto.User(nil), b.peers...), unseen, nil
}

func (b *fakeBackend) History(ctx context.Context, peerID string) ([]proto.Message, error) {
	b.mu.Lock()
	b.calls["history:"+peerID]++
	gate := b.gates[peerID]
	delete(b.gates, peerID)
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return nil, err
	}
	return append([]proto.Message(nil), b.history[peerID]...), nil
}

func (b *fakeBackend) Send(_ context.Context, peerID string, req proto.SendMessageRequest) (proto.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends++
	if err := b.takeFailure(); err != nil {
		return proto.Message{}, err
	}
	b.nextID++
	m := proto.Message{
		ID:         fmt.Sprintf("sent-%d", b.nextID),
		SenderID:   b.me,
		ReceiverID: peerID,
		Text:       req.Text,
		Image:      req.Image,
		CreatedAt:  time.Now(),
	}
	b.history[peerID] = append(b.history[peerID], m)
	return m, nil
}

func (b *fakeBackend) MarkSeen(_ context.Context, messageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marked = append(b.marked, messageID)
	return nil
}

func (b *fakeBackend) markedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.marked...)
}

func (b *fakeBackend) callCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *fakeBackend) fail(err error) {
	b.mu.Lock()
	b.failNext = err
	b.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Notify(err error) {
	n.mu.Lock()
	n.errs = append(n.errs, err)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

var errNetwork = errors.New("network down")

func msg(id, from, to, text string) proto.Message {
	return proto.Message{ID: id, SenderID: from, ReceiverID: to, Text: text}
}

func messageIDs(msgs []proto.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSession(t *testing.T) (*Session, *fakeBackend, *fakeFeed, *recordingNotifier) {
	t.Helper()
	backend := newFakeBackend("me")
	feed := newFakeFeed()
	notifier := &recordingNotifier{}
	s := NewSession(backend, feed, notifier, nil)
	t.Cleanup(s.Close)
	return s, backend, feed, notifier
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/proto"
)

var (
	// ErrNoPeerSelected is returned by Send while no conversation is open.
	ErrNoPeerSelected = errors.New("no peer selected")
	// ErrEmptyMessage is returned by Send when neither text nor image is set.
	ErrEmptyMessage = errors.New("message must contain text or image")
	// ErrSessionClosed is returned by operations after Close.
	ErrSessionClosed = errors.New("session closed")
)

// State is the conversation state of a Session.
type State int

const (
	NoPeerSelected State = iota
	PeerSelected
)

func (s State) String() string {
	if s == PeerSelected {
		return "peer_selected"
	}
	return "no_peer_selected"
}

// Backend is the REST surface a Session needs. *API implements it.
type Backend interface {
	Peers(ctx context.Context) ([]proto.User, map[string]int, error)
	History(ctx context.Context, peerID string) ([]proto.Message, error)
	Send(ctx context.Context, peerID string, req proto.SendMessageRequest) (proto.Message, error)
	MarkSeen(ctx context.Context, messageID string) error
}

// Session is the client-side view of one logged-in user's chats: the selected
// peer, that conversation's messages, unseen counts per peer and who is online.
//
// History fetches, sends and pushed events may interleave in any order; the
// message list never holds the same message ID twice. The unseen count of the
// selected peer is always zero.
//
// Pushed events are routed by the state at the time they are handled, not by
// the subscription they arrived on, so an event dispatched to a subscription
// that a peer switch has already replaced is still counted once.
type Session struct {
	backend  Backend
	feed     Feed
	notifier Notifier
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	peer        string
	messages    []proto.Message
	unseen      map[string]int
	online      []string
	users       []proto.User
	selectGen   uint64
	pending     *pendingSwitch
	unsubscribe func()
	stopConnect func()
}

// NewSession subscribes to feed and returns a session with no peer selected.
// notifier may be nil, in which case failures are logged.
func NewSession(backend Backend, feed Feed, notifier Notifier, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if notifier == nil {
		notifier = logNotifier{log: logger}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend:  backend,
		feed:     feed,
		notifier: notifier,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		unseen:   make(map[string]int),
	}

	s.mu.Lock()
	s.resubscribeLocked()
	s.mu.Unlock()
	s.stopConnect = feed.OnConnect(s.handleConnect)
	return s
}

// pendingSwitch is the last settled conversation, kept while a peer switch
// waits for its history so that a failed fetch can restore it.
type pendingSwitch struct {
	peer     string
	messages []proto.Message
	// late holds pushes from peer that arrived after the switch.
	late []proto.Message
	// cleared holds the unseen counts the switch reset, by peer.
	cleared map[string]int
}

// resubscribeLocked replaces the feed subscription. The old subscription is
// cancelled before the new one exists.
func (s *Session) resubscribeLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.unsubscribe = s.feed.Subscribe(s.handleEnvelope)
}

// SelectPeer opens the conversation with peerID: its unseen count is cleared
// and the list is replaced by the fetched history. Pushes that arrive while
// the fetch is in flight are kept. A failed fetch is reported through the
// notifier and returned, and the previous selection, list and unseen counts
// are restored.
func (s *Session) SelectPeer(ctx context.Context, peerID string) error {
	if peerID == "" {
		return ErrNoPeerSelected
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.peer != peerID {
		if s.pending == nil {
			s.pending = &pendingSwitch{peer: s.peer, messages: s.messages, cleared: make(map[string]int)}
		}
		if n := s.unseen[peerID]; n > 0 {
			s.pending.cleared[peerID] += n
		}
		s.peer = peerID
		s.messages = nil
		s.resubscribeLocked()
	}
	delete(s.unseen, peerID)
	s.selectGen++
	gen := s.selectGen
	s.mu.Unlock()

	return s.fetchHistory(ctx, gen, peerID)
}

func (s *Session) fetchHistory(ctx context.Context, gen uint64, peerID string) error {
	history, err := s.backend.History(ctx, peerID)

	s.mu.Lock()
	if gen != s.selectGen || s.closed {
		s.mu.Unlock()
		s.log.Debug().Str("peer_id", peerID).Msg("superseded history fetch discarded")
		return nil
	}
	if err != nil {
		s.rollbackLocked()
		s.mu.Unlock()
		s.notifier.Notify(err)
		return err
	}
	s.messages = mergeMessages(history, s.messages)
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// rollbackLocked undoes an unsettled peer switch.
func (s *Session) rollbackLocked() {
	p := s.pending
	if p == nil {
		return
	}
	s.pending = nil
	// Fetches still in flight belong to the abandoned selection.
	s.selectGen++

	for id, n := range p.cleared {
		if id != p.peer {
			s.unseen[id] += n
		}
	}
	delete(s.unseen, p.peer)

	restored := p.messages
	if s.peer == p.peer {
		restored = mergeMessages(restored, s.messages)
	}
	changed := s.peer != p.peer
	s.peer = p.peer
	s.messages = restored
	for _, m := range p.late {
		m.Seen = true
		if s.appendLocked(m) {
			s.markSeenAsync(m.ID)
		}
	}
	if changed {
		s.resubscribeLocked()
	}
	s.log.Debug().Str("peer_id", p.peer).Msg("peer switch rolled back")
}

// mergeMessages returns fetched followed by the entries of local it lacks.
// A message seen on either side stays seen.
func mergeMessages(fetched, local []proto.Message) []proto.Message {
	index := make(map[string]int, len(fetched)+len(local))
	out := make([]proto.Message, 0, len(fetched)+len(local))
	for _, list := range [][]proto.Message{fetched, local} {
		for _, m := range list {
			if i, dup := index[m.ID]; dup {
				out[i].Seen = out[i].Seen || m.Seen
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m)
		}
	}
	return out
}

// Deselect closes the open conversation.
func (s *Session) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.peer == "" {
		return
	}
	s.peer = ""
	s.messages = nil
	s.pending = nil
	s.selectGen++
	s.resubscribeLocked()
}

// LoadPeers replaces the peer list and unseen counts with the server's view.
func (s *Session) LoadPeers(ctx context.Context) error {
	users, unseen, err := s.backend.Peers(ctx)
	if err != nil {
		s.notifier.Notify(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.unseen = make(map[string]int, len(unseen))
	for id, n := range unseen {
		if n > 0 && id != s.peer {
			s.unseen[id] = n
		}
	}
	return nil
}

// Send delivers a message to the selected peer and appends the persisted
// message to the list.
func (s *Session) Send(ctx context.Context, text, image string) (proto.Message, error) {
	if text == "" && image == "" {
		return proto.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	closed, peer := s.closed, s.peer
	s.mu.Unlock()
	if closed {
		return proto.Message{}, ErrSessionClosed
	}
	if peer == "" {
		return proto.Message{}, ErrNoPeerSelected
	}

	msg, err := s.backend.Send(ctx, peer, proto.SendMessageRequest{Text: text, Image: image})
	if err != nil {
		s.notifier.Notify(err)
		return proto.Message{}, err
	}

	s.mu.Lock()
	if s.peer == peer {
		s.appendLocked(msg)
	}
	s.mu.Unlock()
	return msg, nil
}

func (s *Session) appendLocked(m proto.Message) bool {
	if slices.ContainsFunc(s.messages, func(x proto.Message) bool { return x.ID == m.ID }) {
		return false
	}
	s.messages = append(s.messages, m)
	return true
}

func (s *Session) handleEnvelope(env proto.Envelope) {
	if env.Type != proto.OutboundTypeEvent {
		return
	}

	switch env.Event {
	case proto.EventOnlineUsers:
		var online []string
		if err := json.Unmarshal(env.Data, &online); err != nil {
			s.log.Warn().Err(err).Msg("decode online users")
			return
		}
		s.mu.Lock()
		if !s.closed {
			s.online = online
		}
		s.mu.Unlock()

	case proto.EventNewMessage:
		var msg proto.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("decode new message")
			return
		}
		s.handleMessage(msg)
	}
}

func (s *Session) handleMessage(msg proto.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.peer != "" && msg.SenderID == s.peer {
		msg.Seen = true
		if s.appendLocked(msg) {
			s.markSeenAsync(msg.ID)
		}
		return
	}
	s.unseen[msg.SenderID]++
	if p := s.pending; p != nil && p.peer != "" && msg.SenderID == p.peer {
		p.late = append(p.late, msg)
	}
}

func (s *Session) markSeenAsync(messageID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.backend.MarkSeen(s.ctx, messageID); err != nil && s.ctx.Err() == nil {
			s.log.Warn().Err(err).Str("message_id", messageID).Msg("mark seen failed")
		}
	}()
}

// handleConnect runs on every (re)connect of the feed. Pushes missed while
// disconnected are recovered by refetching peers and the open conversation.
func (s *Session) handleConnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resubscribeLocked()
	peer, gen := s.peer, s.selectGen
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.LoadPeers(s.ctx); err != nil {
			return
		}
		if peer != "" {
			_ = s.fetchHistory(s.ctx, gen, peer)
		}
	}()
}

// Close drops the feed subscription and waits for background requests.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	stop := s.stopConnect
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.cancel()
	s.wg.Wait()
}

// State returns the current state and the selected peer, if any.
func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == "" {
		return NoPeerSelected, ""
	}
	return PeerSelected, s.peer
}

// Messages returns a copy of the open conversation in list order.
func (s *Session) Messages() []proto.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Unseen returns a copy of the unseen counts keyed by sender ID.
func (s *Session) Unseen() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.unseen)
}

// OnlineUsers returns the last presence set received.
func (s *Session) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.online)
}

// Users returns the last loaded peer list.
func (s *Session) Users() []proto.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/media"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// Store is the persistence the delivery pipeline needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]*store.User, error)
	store.MessageStore
}

// Pusher delivers events to live channels. *Hub implements it.
type Pusher interface {
	Push(ctx context.Context, userID string, ev *Event) PushResult
}

// Delivery persists messages and pushes them to online receivers.
type Delivery struct {
	store    Store
	pusher   Pusher
	uploader media.Uploader
	log      *zerolog.Logger
}

// NewDelivery wires the pipeline. uploader may be nil, in which case image
// payloads are stored as given.
func NewDelivery(st Store, pusher Pusher, uploader media.Uploader, logger *zerolog.Logger) *Delivery {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Delivery{
		store:    st,
		pusher:   pusher,
		uploader: uploader,
		log:      logger,
	}
}

// Send persists a message from senderID to receiverID and pushes it to the
// receiver's live channel if there is one. The persisted message is returned
// whether or not the push happened; push failures are only logged.
//
// An empty payload is accepted here; callers validate content upstream.
func (d *Delivery) Send(ctx context.Context, senderID, receiverID string, p Payload) (*Message, error) {
	if senderID == "" || receiverID == "" {
		return nil, validationError(ErrCodeBadRequest, "sender and receiver are required")
	}
	if senderID == receiverID {
		return nil, validationError(ErrCodeBadRequest, "cannot send a message to yourself")
	}

	if _, err := d.store.GetUserByID(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError(ErrCodeUnknownPeer, "receiver not found")
		}
		return nil, persistenceError(ErrCodePersistence, "lookup receiver", err)
	}

	image, err := d.storeImage(ctx, senderID, p.Image)
	if err != nil {
		return nil, err
	}

	rec := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       p.Text,
		Image:      image,
	}
	if err := d.store.CreateMessage(ctx, rec); err != nil {
		return nil, persistenceError(ErrCodePersistence, "save message", err)
	}
	msg := messageFromStore(rec)

	// The message is durable from here on; a cancelled request must not skip the push.
	result := d.pusher.Push(context.WithoutCancel(ctx), receiverID, &Event{Kind: EventNewMessage, Message: msg})
	logEvent := d.log.Debug()
	if result == PushDropped || result == PushAborted {
		logEvent = d.log.Warn()
	}
	logEvent.
		Str("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Stringer("push", result).
		Msg("message delivered")

	return &msg, nil
}

func (d *Delivery) storeImage(ctx context.Context, ownerID, image string) (string, error) {
	if d.uploader == nil || !media.IsDataURL(image) {
		return image, nil
	}
	url, err := d.uploader.Upload(ctx, ownerID, image)
	if err != nil {
		if errors.Is(err, media.ErrInvalidDataURL) {
			return "", validationError(ErrCodeBadRequest, "image must be a base64 image data url")
		}
		return "", persistenceError(ErrCodeUploadError, "upload image", err)
	}
	return url, nil
}

// MarkSeen flips the seen flag of messageID. Already-seen and unknown
// messages are a no-op. Ownership is checked by the caller.
func (d *Delivery) MarkSeen(ctx context.Context, messageID string) error {
	changed, err := d.store.MarkMessageSeen(ctx, messageID)
	if err != nil {
		return persistenceError(ErrCodePersistence, "mark seen", err)
	}
	d.log.Debug().Str("message_id", messageID).Bool("changed", changed).Msg("message marked seen")
	return nil
}

// MarkSeenBy is MarkSeen restricted to the receiver's own inbox: messages
// addressed to someone else are left untouched without error.
func (d *Delivery) MarkSeenBy(ctx context.Context, readerID, messageID string) error {
	msg, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return persistenceError(ErrCodePersistence, "lookup message", err)
	}
	if msg.ReceiverID != readerID {
		d.log.Debug().Str("message_id", messageID).Str("reader_id", readerID).Msg("mark seen outside own inbox ignored")
		return nil
	}
	return d.MarkSeen(ctx, messageID)
}

// History returns the conversation between userID and peerID in insertion
// order. Messages from the peer are marked seen first, since opening the
// conversation is what clears them.
func (d *Delivery) History(ctx context.Context, userID, peerID string) ([]Message, error) {
	if userID == "" || peerID == "" {
		return nil, validationError(ErrCodeBadRequest, "peer is required")
	}
	if _, err := d.store.GetUserByID(ctx, peerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError(ErrCodeUnknownPeer, "peer not found")
		}
		return nil, persistenceError(ErrCodePersistence, "lookup peer", err)
	}
	if _, err := d.store.MarkConversationSeen(ctx, peerID, userID); err != nil {
		return nil, persistenceError(ErrCodePersistence, "mark conversation seen", err)
	}
	recs, err := d.store.ListMessagesBetween(ctx, userID, peerID)
	if err != nil {
		return nil, persistenceError(ErrCodePersistence, "list messages", err)
	}
	messages := make([]Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, messageFromStore(rec))
	}
	return messages, nil
}

// Peers returns every other user together with the number of unseen
// messages each of them sent to userID.
func (d *Delivery) Peers(ctx context.Context, userID string) ([]*store.User, map[string]int, error) {
	users, err := d.store.ListUsersExcept(ctx, userID)
	if err != nil {
		return nil, nil, persistenceError(ErrCodePersistence, "list users", err)
	}
	unseen, err := d.store.CountUnseenBySender(ctx, userID)
	if err != nil {
		return nil, nil, persistenceError(ErrCodePersistence, "count unseen", err)
	}
	return users, unseen, nil
}

package client

import "github.com/rs/zerolog"

// Notifier surfaces transient, user-visible failures such as a failed fetch.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

type logNotifier struct {
	log *zerolog.Logger
}

func (n logNotifier) Notify(err error) {
	n.log.Warn().Err(err).Msg("chat operation failed")
}

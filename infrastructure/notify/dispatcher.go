package notify

import (
	"context"

	"potsync/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

var _ interfaces.Notifier = (*Dispatcher)(nil)

// Dispatcher logs every notification and fans it out to each sink in order
type Dispatcher struct {
	sinks []interfaces.Notifier
}

// NewDispatcher creates a dispatcher over the given sinks. Nil sinks are ignored.
func NewDispatcher(sinks ...interfaces.Notifier) *Dispatcher {
	d := &Dispatcher{}
	for _, sink := range sinks {
		if sink != nil {
			d.sinks = append(d.sinks, sink)
		}
	}
	return d
}

// Notify delivers to every sink. A panicking sink does not stop the others.
func (d *Dispatcher) Notify(ctx context.Context, account, title, message string) {
	log.WithFields(log.Fields{
		"account": account,
		"title":   title,
		"sinks":   len(d.sinks),
	}).Warn(message)

	for _, sink := range d.sinks {
		d.deliver(ctx, sink, account, title, message)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink interfaces.Notifier, account, title, message string) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"account": account,
				"title":   title,
				"panic":   r,
			}).Error("Notification sink panicked")
		}
	}()
	sink.Notify(ctx, account, title, message)
}

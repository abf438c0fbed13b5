package realtime

import (
	"brainsync-client/internal/pkg/logger"
)

// Notification is the user-visible side of a recognized event.
type Notification struct {
	Event Event
	Text  string
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type LogNotifier struct {
	logger logger.ILogger
}

func NewLogNotifier(log logger.ILogger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(notification Notification) {
	n.logger.Info("Realtime", notification.Text, map[string]interface{}{
		"kind":    string(notification.Event.Kind),
		"note_id": notification.Event.NoteId,
	})
}

// ChanNotifier hands notifications to a reader. It never blocks the dispatch task:
// when the buffer is full the notification is dropped.
type ChanNotifier struct {
	C chan Notification
}

func NewChanNotifier(buffer int) *ChanNotifier {
	return &ChanNotifier{C: make(chan Notification, buffer)}
}

func (n *ChanNotifier) Notify(notification Notification) {
	select {
	case n.C <- notification:
	default:
	}
}

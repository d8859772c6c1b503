package tg

import (
	"github.com/pvzzle/ethwallet/internal/bus"
	klog "github.com/pvzzle/ethwallet/internal/log"
	"github.com/pvzzle/ethwallet/internal/storage"

	"github.com/rs/zerolog"
)

// Notifier turns recorded transactions into chat notifications. Publishing
// never blocks; when the buffer is full the notification is dropped.
type Notifier struct {
	chatID int64
	ch     chan bus.Notification
	log    zerolog.Logger
}

func NewNotifier(chatID int64, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &Notifier{
		chatID: chatID,
		ch:     make(chan bus.Notification, buffer),
		log:    klog.WithComponent("tg"),
	}
}

func (n *Notifier) PublishTx(tx storage.TxRecord) {
	if n.chatID == 0 {
		return
	}
	select {
	case n.ch <- bus.Notification{ChatID: n.chatID, Text: FormatTxNotification(tx)}:
	default:
		n.log.Warn().Str("hash", tx.Hash).Msg("notify buffer full, dropping")
	}
}

func (n *Notifier) C() <-chan bus.Notification {
	return n.ch
}

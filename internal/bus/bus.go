package bus

// Notification is a chat message queued for delivery by the notifier loop.
type Notification struct {
	ChatID int64
	Text   string
}

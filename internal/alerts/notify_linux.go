//go:build linux

package alerts

// NotifySendNotifier sends Linux desktop notifications via notify-send.
// Notifications are sent in the background so the engine never waits on
// the notification daemon. Close waits for the pending ones.
type NotifySendNotifier struct {
	*runner
	// enabled controls whether notifications are actually sent.
	enabled bool
}

// NewNotifySendNotifier creates a new Linux notification sender.
// If enabled is false, notifications are silently dropped.
func NewNotifySendNotifier(enabled bool) *NotifySendNotifier {
	return &NotifySendNotifier{runner: newRunner(maxPendingNotifications), enabled: enabled}
}

// NewPlatformNotifier creates the platform-appropriate notifier for Linux.
func NewPlatformNotifier(enabled bool) Notifier {
	return NewNotifySendNotifier(enabled)
}

// Notify sends a Linux desktop notification for the given alert.
func (n *NotifySendNotifier) Notify(alert Alert) {
	if !n.enabled {
		return
	}

	title := notificationTitle(alert)
	body := notificationBody(alert)

	n.start(alert.Rule, "notify-send", "--urgency", "critical", "--app-name", "growwatch", title, body)
}

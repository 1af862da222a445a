//go:build darwin

package alerts

import (
	"fmt"
	"strings"
)

// OSAScriptNotifier sends macOS system notifications via osascript.
type OSAScriptNotifier struct {
	*runner
	enabled bool
}

// NewOSAScriptNotifier creates a new macOS notification sender.
// If enabled is false, notifications are silently dropped.
func NewOSAScriptNotifier(enabled bool) *OSAScriptNotifier {
	return &OSAScriptNotifier{runner: newRunner(maxPendingNotifications), enabled: enabled}
}

// NewPlatformNotifier creates the platform-appropriate notifier for macOS.
func NewPlatformNotifier(enabled bool) Notifier {
	return NewOSAScriptNotifier(enabled)
}

// Notify sends a macOS notification for the given alert. The osascript
// command runs in the background.
func (n *OSAScriptNotifier) Notify(alert Alert) {
	if !n.enabled {
		return
	}

	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		escapeAppleScript(notificationBody(alert)),
		escapeAppleScript(notificationTitle(alert)),
	)

	n.start(alert.Rule, "osascript", "-e", script)
}

// escapeAppleScript escapes characters that could break AppleScript strings.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

//go:build !linux && !darwin

package alerts

// NewPlatformNotifier returns a notifier that drops alerts; desktop
// notifications are only wired on Linux and macOS.
func NewPlatformNotifier(enabled bool) Notifier {
	return NopNotifier{}
}

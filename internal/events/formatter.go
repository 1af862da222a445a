// Package events formats and buffers engine notifications for the live
// feed and the terminal browser.
package events

import (
	"fmt"
	"time"

	"github.com/nixlim/growwatch/internal/alerts"
)

const stampLayout = "02/01 15:04"

// FormatNotification converts a notification into a display-ready Entry:
//   - alert:   "Botrytis 01/08 00:05 -> 01/08 06:20 (06:15)"
//   - anomaly: "out-of-order humidity reading at 01/08 00:05 (engine at 01/08 00:10)"
func FormatNotification(n alerts.Notification) Entry {
	e := Entry{
		Kind:      string(n.Kind),
		Timestamp: n.Timestamp(),
	}

	switch n.Kind {
	case alerts.KindAlert:
		a := n.Alert
		e.Rule = a.Rule
		e.AlertID = a.ID
		e.Formatted = fmt.Sprintf("%s %s -> %s (%s)",
			a.Rule,
			a.StartedAt.Format(stampLayout),
			a.FinishedAt.Format(stampLayout),
			FormatElapsed(a.Elapsed()))
	case alerts.KindAnomaly:
		if n.Anomaly != nil {
			e.Formatted = fmt.Sprintf("out-of-order %s reading at %s (engine at %s)",
				n.Anomaly.Reading.Dimension,
				n.Anomaly.Reading.Timestamp.Format(stampLayout),
				n.Anomaly.Current.Format(stampLayout))
		} else {
			e.Formatted = "out-of-order reading"
		}
	default:
		e.Formatted = string(n.Kind)
	}
	return e
}

// FormatElapsed renders d as HH:mm, truncating seconds. Hours are not
// wrapped at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

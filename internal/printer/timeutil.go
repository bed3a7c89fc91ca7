package printer

import (
	"fmt"
	"time"

	"github.com/slok/devsbx/internal/model"
)

type agoUnit struct {
	size time.Duration
	name string
}

var agoUnits = []agoUnit{
	{24 * time.Hour, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
	{time.Second, "second"},
}

// TimeAgo returns how long ago t was in the biggest whole unit, e.g: "3 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	return timeAgo(t, time.Now())
}

func timeAgo(t, now time.Time) string {
	diff := now.UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	for _, u := range agoUnits {
		if diff < u.size && u.size != time.Second {
			continue
		}
		n := int(diff / u.size)
		if n == 1 {
			return fmt.Sprintf("1 %s ago (UTC)", u.name)
		}
		return fmt.Sprintf("%d %ss ago (UTC)", n, u.name)
	}

	return "" // Unreachable, seconds always match.
}

// FormatTimestamp returns the time in UTC as "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// RunDuration returns the wall time of a finished batch run, rounded to
// milliseconds. Unfinished runs return "-".
func RunDuration(run model.BatchRun) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.CreatedAt).Round(time.Millisecond).String()
}

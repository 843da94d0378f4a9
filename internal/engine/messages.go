package engine

import (
	"fmt"
	"strings"
)

func firstContactMessage(name string) string {
	return fmt.Sprintf("%s is UP: first contact", name)
}

func recoveredMessage(name string, downtime int64) string {
	return fmt.Sprintf("%s recovered: back UP after %s of silence", name, HumanDuration(downtime))
}

func neverReportedMessage(name string) string {
	return fmt.Sprintf("%s never reported, marking DOWN", name)
}

func declaredDownMessage(name string, threshold int64) string {
	return fmt.Sprintf("%s is DOWN: silent for more than %ds", name, threshold)
}

var durationUnits = []struct {
	seconds  int64
	singular string
	plural   string
}{
	{86400, "day", "days"},
	{3600, "hour", "hours"},
	{60, "minute", "minutes"},
	{1, "second", "seconds"},
}

// HumanDuration renders seconds as "5 minutes 0 seconds". Units above the
// largest non-zero one are omitted; seconds are always present.
func HumanDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	parts := make([]string, 0, len(durationUnits))
	for _, unit := range durationUnits {
		n := seconds / unit.seconds
		seconds %= unit.seconds
		if n == 0 && len(parts) == 0 && unit.seconds > 1 {
			continue
		}
		label := unit.plural
		if n == 1 {
			label = unit.singular
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	return strings.Join(parts, " ")
}

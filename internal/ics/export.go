// Package ics renders calendar occurrences as an iCalendar feed so the
// month view can be subscribed to from any calendar client.
package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"clawdash/internal/model"
)

const productID = "-//clawdash//agent jobs//EN"

// Export serializes occs as a VCALENDAR named calName. stamp becomes the
// DTSTAMP of every VEVENT so output is reproducible for a fixed instant.
func Export(calName string, occs []model.CalendarOccurrence, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if calName != "" {
		cal.SetXWRCalName(calName)
	}

	for _, occ := range occs {
		ev := cal.AddEvent(occurrenceUID(occ))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(occ.Start.UTC())
		ev.SetSummary(occ.Title)
		if desc := describe(occ); desc != "" {
			ev.SetDescription(desc)
		}
		ev.SetProperty(ical.ComponentPropertyCategories, string(occ.Type))
		status := "CONFIRMED"
		if occ.Status == model.StatusDisabled {
			status = "CANCELLED"
		}
		ev.SetProperty(ical.ComponentPropertyStatus, status)
	}

	return cal.Serialize()
}

// occurrenceUID derives a stable UID from title and start so that clients
// re-importing the feed update events instead of duplicating them.
func occurrenceUID(occ model.CalendarOccurrence) string {
	sum := sha256.Sum256([]byte(occ.Title + "\x00" + occ.Start.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:8]) + "@clawdash"
}

func describe(occ model.CalendarOccurrence) string {
	var parts []string
	if occ.Schedule != "" {
		parts = append(parts, "Schedule: "+occ.Schedule)
	}
	if occ.IsOneTime {
		parts = append(parts, "One-time")
	}
	return strings.Join(parts, "\n")
}

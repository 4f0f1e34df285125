package calendar

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/emersion/go-ical"
)

const productID = "-//eventrsvp//EN"

// ICSEvent is one VEVENT of an iCalendar export.
type ICSEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string
	Organizer   string
	Start       time.Time
	End         time.Time
	Stamp       time.Time
	Cancelled   bool
}

// EncodeICS writes a VCALENDAR containing events to w.
func EncodeICS(w io.Writer, events ...ICSEvent) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, event := range events {
		component, err := toICal(event)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("ics: encode calendar: %w", err)
	}
	return nil
}

func toICal(event ICSEvent) (*ical.Component, error) {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.UID)
	ve.Props.SetText(ical.PropSummary, event.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, event.Stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.URL != "" {
		u, err := url.Parse(event.URL)
		if err != nil {
			return nil, fmt.Errorf("ics: parse url for %s: %w", event.UID, err)
		}
		ve.Props.SetURI(ical.PropURL, u)
	}
	if event.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Params.Set(ical.ParamCommonName, event.Organizer)
		p.SetText("mailto:noreply@eventrsvp.invalid")
		ve.Props.Add(p)
	}

	status := "CONFIRMED"
	if event.Cancelled {
		status = "CANCELLED"
	}
	ve.Props.SetText(ical.PropStatus, status)

	return ve, nil
}

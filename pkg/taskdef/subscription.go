package taskdef

import (
	"bytes"
	"fmt"
)

// Subscription is the event-log query behind an EventTrigger.
type Subscription struct {
	// Log is the event channel, e.g. "System" or "Microsoft-Windows-TaskScheduler/Operational".
	Log string
	// Source is the event provider name.
	Source string
	// EventID narrows the query to one event ID; nil matches every event from Source.
	EventID *int
}

// EventID is a small helper for filling Subscription.EventID.
func EventID(id int) *int { return &id }

// Select returns the XPath filter used in the <Select> element.
func (s Subscription) Select() string {
	if s.EventID != nil {
		return fmt.Sprintf("*[System[Provider[@Name='%s'] and EventID=%d]]", s.Source, *s.EventID)
	}
	return fmt.Sprintf("*[System[Provider[@Name='%s']]]", s.Source)
}

// XML renders the QueryList document embedded as text in <Subscription>:
//
//	<QueryList><Query Id="0" Path="System"><Select Path="System">*[System[...]]</Select></Query></QueryList>
func (s Subscription) XML() (string, error) {
	var buf bytes.Buffer
	w := newXMLWriter(&buf, "")

	w.start("QueryList")
	w.start("Query", attr("Id", "0"), attr("Path", s.Log))
	w.start("Select", attr("Path", s.Log))
	w.text(s.Select())
	w.end("Select")
	w.end("Query")
	w.end("QueryList")

	return w.finish(&buf)
}

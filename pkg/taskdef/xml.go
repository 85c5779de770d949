package taskdef

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// SerializationError is returned when a task cannot be rendered to XML.
// It is never caused by the scheduling service and retrying will not help.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return "taskdef: serialize: " + e.Err.Error() }
func (e *SerializationError) Unwrap() error { return e.Err }

// XML renders the task as an indented Task Scheduler document without an XML
// declaration.
func (t *Task) XML() (string, error) {
	var buf bytes.Buffer
	w := newXMLWriter(&buf, "  ")

	w.start("Task",
		attr("version", t.Version.String()),
		attr("xmlns", Namespace),
	)

	w.start("Triggers")
	for _, tr := range t.Triggers {
		w.trigger(tr)
	}
	w.end("Triggers")

	w.settings(&t.Settings)

	w.start("Actions", attr("Context", "Author"))
	for _, a := range t.Actions {
		w.action(a)
	}
	w.end("Actions")

	w.end("Task")
	return w.finish(&buf)
}

func (w *xmlWriter) trigger(tr Trigger) {
	switch tr := tr.(type) {
	case EventTrigger:
		w.eventTrigger(&tr)
	case *EventTrigger:
		if tr == nil {
			w.fail(fmt.Errorf("nil *EventTrigger"))
			return
		}
		w.eventTrigger(tr)
	default:
		w.fail(fmt.Errorf("unsupported trigger %T", tr))
	}
}

func (w *xmlWriter) eventTrigger(tr *EventTrigger) {
	sub, err := tr.Subscription.XML()
	if err != nil {
		w.fail(err)
		return
	}

	w.start("EventTrigger")
	w.element("Enabled", strconv.FormatBool(tr.Enabled))
	w.element("Subscription", sub)
	if len(tr.ValueQueries) > 0 {
		w.start("ValueQueries")
		for _, v := range tr.ValueQueries {
			w.start("Value", attr("name", v.Name))
			w.text(v.Value)
			w.end("Value")
		}
		w.end("ValueQueries")
	}
	w.end("EventTrigger")
}

func (w *xmlWriter) settings(s *Settings) {
	w.start("Settings")
	w.element("MultipleInstancesPolicy", s.MultipleInstancesPolicy.String())
	w.element("DisallowStartIfOnBatteries", strconv.FormatBool(s.DisallowStartIfOnBatteries))
	w.element("StopIfGoingOnBatteries", strconv.FormatBool(s.StopIfGoingOnBatteries))
	w.element("AllowHardTerminate", strconv.FormatBool(s.AllowHardTerminate))
	w.element("StartWhenAvailable", strconv.FormatBool(s.StartWhenAvailable))
	w.element("RunOnlyIfNetworkAvailable", strconv.FormatBool(s.RunOnlyIfNetworkAvailable))

	w.start("IdleSettings")
	w.element("StopOnIdleEnd", strconv.FormatBool(s.IdleSettings.StopOnIdleEnd))
	w.element("RestartOnIdle", strconv.FormatBool(s.IdleSettings.RestartOnIdle))
	w.end("IdleSettings")

	w.element("AllowStartOnDemand", strconv.FormatBool(s.AllowStartOnDemand))
	w.element("Enabled", strconv.FormatBool(s.Enabled))
	w.element("Hidden", strconv.FormatBool(s.Hidden))
	w.element("RunOnlyIfIdle", strconv.FormatBool(s.RunOnlyIfIdle))
	w.element("WakeToRun", strconv.FormatBool(s.WakeToRun))
	w.element("ExecutionTimeLimit", s.ExecutionTimeLimit)
	w.element("Priority", strconv.FormatUint(uint64(s.Priority), 10))
	w.end("Settings")
}

func (w *xmlWriter) action(a Action) {
	var ex *Exec
	switch a := a.(type) {
	case Exec:
		ex = &a
	case *Exec:
		if a == nil {
			w.fail(fmt.Errorf("nil *Exec"))
			return
		}
		ex = a
	default:
		w.fail(fmt.Errorf("unsupported action %T", a))
		return
	}

	w.start("Exec")
	w.element("Command", ex.Command)
	if ex.Arguments != nil {
		w.element("Arguments", *ex.Arguments)
	}
	w.end("Exec")
}

// xmlWriter streams tokens into an xml.Encoder and keeps the first error, so
// the serializers above can be written as straight-line code.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func newXMLWriter(buf *bytes.Buffer, indent string) *xmlWriter {
	enc := xml.NewEncoder(buf)
	if indent != "" {
		enc.Indent("", indent)
	}
	return &xmlWriter{enc: enc}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (w *xmlWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.fail(w.enc.EncodeToken(t))
}

func (w *xmlWriter) start(name string, attrs ...xml.Attr) {
	for _, a := range attrs {
		w.checkText(a.Value)
	}
	w.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (w *xmlWriter) end(name string) {
	w.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *xmlWriter) text(s string) {
	w.checkText(s)
	w.token(xml.CharData(s))
}

// checkText rejects what the encoder would otherwise replace with U+FFFD:
// invalid UTF-8 and runes outside the XML Char production.
func (w *xmlWriter) checkText(s string) {
	if w.err != nil {
		return
	}
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				w.fail(fmt.Errorf("invalid UTF-8 at byte %d of %q", i, s))
				return
			}
		}
		if !isXMLChar(r) {
			w.fail(fmt.Errorf("character %U at byte %d of %q is not allowed in XML", r, i, s))
			return
		}
	}
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

func (w *xmlWriter) element(name, body string) {
	w.start(name)
	w.text(body)
	w.end(name)
}

func (w *xmlWriter) finish(buf *bytes.Buffer) (string, error) {
	if w.err == nil {
		w.fail(w.enc.Close())
	}
	if w.err != nil {
		return "", &SerializationError{Err: w.err}
	}
	return buf.String(), nil
}

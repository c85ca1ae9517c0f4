package mqtt

import (
	"fmt"

	"github.com/jmylchreest/wakelightd/internal/events"
)

// Topics builds the topics of one bulb below a common prefix:
//
//	<prefix>/<mac>/status          online/offline, retained, also the LWT
//	<prefix>/<mac>/session         latest session event, retained
//	<prefix>/<mac>/events/<type>   every event as it happens
type Topics struct {
	Prefix string
	MAC    string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.Prefix, t.MAC)
}

// Status returns the availability topic
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Session returns the retained session state topic
func (t Topics) Session() string {
	return t.base() + "/session"
}

// Event returns the topic for one event type
func (t Topics) Event(eventType events.EventType) string {
	return fmt.Sprintf("%s/events/%s", t.base(), eventType)
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: events.go
Description: UI event records emitted by the exploration driver. Each record is
one timestamped JSON file in the driver's event directory; the payload is kept
opaque apart from the event kind used for perturbation triggering.
*/

package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Kind classifies a driver UI event. Unrecognized kinds pass through with
// their literal value so trigger sets simply fail to match them.
type Kind string

const (
	KindTouch     Kind = "touch"
	KindLongTouch Kind = "long_touch"
	KindSetText   Kind = "set_text"
	KindSpawn     Kind = "spawn"
	KindScroll    Kind = "scroll"
	KindSwipe     Kind = "swipe"
	KindKey       Kind = "key"
	KindManual    Kind = "manual"
	KindExit      Kind = "exit"
	KindIntent    Kind = "intent"
	KindSelect    Kind = "select"
	KindUnselect  Kind = "unselect"
	KindUnknown   Kind = "unknown"
)

// Record represents one driver UI event. File is the unique source filename,
// which the driver names so lexicographic order matches capture order.
type Record struct {
	File    string                 // Source filename within the event directory
	Kind    Kind                   // Parsed event kind
	Payload map[string]interface{} // Full decoded document, opaque to consumers
}

// ParseRecord decodes a single driver event file. The driver writes either a
// wrapped document with an "event" object or a bare document; both carry the
// kind under "event_type".
func ParseRecord(path string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse event file %s: %w", path, err)
	}

	kind := KindUnknown
	if wrapped, ok := doc["event"].(map[string]interface{}); ok {
		if s, ok := wrapped["event_type"].(string); ok && s != "" {
			kind = Kind(s)
		}
	} else if s, ok := doc["event_type"].(string); ok && s != "" {
		kind = Kind(s)
	}

	return &Record{
		File:    filepath.Base(path),
		Kind:    kind,
		Payload: doc,
	}, nil
}

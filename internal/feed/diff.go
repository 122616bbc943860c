package feed

import (
	"bytes"
	"encoding/json"
	"sort"
)

// diffChildren turns two successive snapshots of a collection into the child
// events that lead from prev to next. Events are ordered by key; removals of
// a key never precede its own addition since a key appears at most once.
func diffChildren(prev, next map[string]json.RawMessage) []ChildEvent {
	keys := make([]string, 0, len(prev)+len(next))
	for k := range prev {
		keys = append(keys, k)
	}
	for k := range next {
		if _, ok := prev[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var events []ChildEvent
	for _, k := range keys {
		before, had := prev[k]
		after, has := next[k]
		switch {
		case had && !has:
			events = append(events, ChildEvent{Type: ChildRemoved, Key: k})
		case !had && has:
			events = append(events, ChildEvent{Type: ChildAdded, Key: k, Value: after})
		case !sameJSON(before, after):
			events = append(events, ChildEvent{Type: ChildChanged, Key: k, Value: after})
		}
	}
	return events
}

func sameJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

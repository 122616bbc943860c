package feed

import (
	"encoding/json"
	"testing"
)

func TestDiffChildren(t *testing.T) {
	prev := map[string]json.RawMessage{
		"a": json.RawMessage(`{"v":1}`),
		"b": json.RawMessage(`{"v":2}`),
		"c": json.RawMessage(`{"v":3}`),
	}
	next := map[string]json.RawMessage{
		"a": json.RawMessage(`{ "v": 1 }`),
		"b": json.RawMessage(`{"v":20}`),
		"d": json.RawMessage(`{"v":4}`),
	}

	got := diffChildren(prev, next)
	want := []struct {
		typ ChildEventType
		key string
	}{
		{ChildChanged, "b"},
		{ChildRemoved, "c"},
		{ChildAdded, "d"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Type != w.typ || got[i].Key != w.key {
			t.Errorf("event %d = %s %s, want %s %s", i, got[i].Type, got[i].Key, w.typ, w.key)
		}
	}
	if got[1].Value != nil {
		t.Errorf("removal carries value %s", got[1].Value)
	}
}

func TestDiffFromEmpty(t *testing.T) {
	got := diffChildren(nil, map[string]json.RawMessage{
		"z": json.RawMessage(`1`),
		"m": json.RawMessage(`2`),
	})
	if len(got) != 2 || got[0].Key != "m" || got[1].Key != "z" {
		t.Fatalf("got %+v", got)
	}
	for _, ev := range got {
		if ev.Type != ChildAdded {
			t.Errorf("%s: type = %s, want ADDED", ev.Key, ev.Type)
		}
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ChildEvent
	}{
		{
			name:    "added",
			payload: `{"op":"ADDED","key":"k1","value":"{\"id\":\"k1\"}"}`,
			want:    ChildEvent{Type: ChildAdded, Key: "k1", Value: json.RawMessage(`{"id":"k1"}`)},
		},
		{
			name:    "removed",
			payload: `{"op":"REMOVED","key":"k2"}`,
			want:    ChildEvent{Type: ChildRemoved, Key: "k2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEnvelope(tt.payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Type != tt.want.Type || got.Key != tt.want.Key || string(got.Value) != string(tt.want.Value) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := decodeEnvelope("not json"); err == nil {
		t.Error("expected error for malformed payload")
	}
}

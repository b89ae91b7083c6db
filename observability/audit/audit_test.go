package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"custodia/core/types"
)

type stubEvent struct {
	evt *types.Event
}

func (e stubEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stubEvent) Event() *types.Event { return e.evt }

func TestSinkLogsEventAttributes(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Emit(stubEvent{evt: &types.Event{
		Type: "escrow.funds.locked",
		Attributes: map[string]string{
			"bountyId": "7",
			"amount":   "990",
		},
	}})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["msg"] != "settlement event" {
		t.Fatalf("unexpected message: %v", line["msg"])
	}
	if line["type"] != "escrow.funds.locked" {
		t.Fatalf("unexpected type: %v", line["type"])
	}
	if line["bountyId"] != "7" || line["amount"] != "990" {
		t.Fatalf("missing payload attributes: %v", line)
	}
}

func TestSinkIgnoresNilEvents(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Emit(nil)
	sink.Emit(stubEvent{})

	if buf.Len() == 0 {
		t.Fatalf("carrier without payload should still log its type")
	}
}

package catalog

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOutcomeConstructors(t *testing.T) {
	ok := Completed("a.jpg", ProductFields{ProductName: "Lamp"}, "https://x/a", 12)
	if ok.Status != StatusCompleted || ok.Fields == nil || ok.StorageRef == "" || ok.ErrorMessage != "" {
		t.Errorf("completed outcome malformed: %+v", ok)
	}

	bad := Failed("b.jpg", "", 7)
	if bad.Status != StatusFailed || bad.Fields != nil || bad.StorageRef != "" {
		t.Errorf("failed outcome malformed: %+v", bad)
	}
	if bad.ErrorMessage == "" {
		t.Error("failed outcome must carry an error message")
	}
}

func TestOutcomeJSON(t *testing.T) {
	out := Failed("b.jpg", "quota exceeded", 40)
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"status":"failed"`, `"error":"quota exceeded"`, `"processingTime":40`} {
		if !strings.Contains(s, want) {
			t.Errorf("json %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "productFields") {
		t.Errorf("failed outcome should omit productFields: %s", s)
	}

	var back ItemOutcome
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Status != StatusFailed {
		t.Errorf("status = %v, want failed", back.Status)
	}
}

func TestStatusUnmarshalRejectsUnknown(t *testing.T) {
	var s Status
	if err := json.Unmarshal([]byte(`"pending"`), &s); err == nil {
		t.Error("expected error for unknown status")
	}
}

package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/gate"
	"github.com/gantryhq/gantry/internal/logging"
)

func TestWriteGateDecision(t *testing.T) {
	dir := t.TempDir()

	if err := WriteGateDecision(dir, "ship-gate", gate.DecisionApproved, "tester", "lgtm"); err != nil {
		t.Fatalf("WriteGateDecision: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "gate-ship-gate.json"))
	if err != nil {
		t.Fatalf("reading drop file: %v", err)
	}
	var got gateDecisionFile
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.GateID != "ship-gate" || got.Decision != "approved" || got.ResolvedBy != "tester" || got.Comment != "lgtm" {
		t.Errorf("drop file = %+v, want the written decision", got)
	}
}

func TestWriteGateDecision_Validation(t *testing.T) {
	dir := t.TempDir()

	if err := WriteGateDecision(dir, "", gate.DecisionApproved, "", ""); err == nil {
		t.Error("empty gate ID accepted, want error")
	}
	if err := WriteGateDecision(dir, "g", gate.DecisionTimedOut, "", ""); err == nil {
		t.Error("timed-out decision accepted, want error")
	}
	if err := WriteGateDecision(dir, "g", gate.Decision("maybe"), "", ""); err == nil {
		t.Error("unknown decision accepted, want error")
	}
}

func TestWriteAbort(t *testing.T) {
	dir := t.TempDir()

	if err := WriteAbort(dir, "emergency stop"); err != nil {
		t.Fatalf("WriteAbort: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, abortFileName))
	if err != nil {
		t.Fatalf("reading drop file: %v", err)
	}
	var got abortFile
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Reason != "emergency stop" {
		t.Errorf("Reason = %q, want emergency stop", got.Reason)
	}
}

func TestWriteControlFile_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()

	if err := WriteAbort(dir, "x"); err != nil {
		t.Fatalf("WriteAbort: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestControlWatcher_AppliesAbort(t *testing.T) {
	dir := t.TempDir()
	reasons := make(chan string, 1)

	w, err := newControlWatcher(dir, logging.NopLogger(),
		func(gateID string, decision gate.Decision, by, comment string) error { return nil },
		func(reason string) { reasons <- reason })
	if err != nil {
		t.Fatalf("newControlWatcher: %v", err)
	}
	w.start()
	defer w.stop()

	if err := WriteAbort(dir, "drop test"); err != nil {
		t.Fatalf("WriteAbort: %v", err)
	}

	select {
	case got := <-reasons:
		if got != "drop test" {
			t.Errorf("reason = %q, want drop test", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("abort callback never fired")
	}

	// The applied file is consumed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(dir, abortFileName)); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abort file not removed after applying")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// A decision dropped before its gate goes pending stays on disk and is
// retried until it applies.
func TestControlWatcher_RetriesEarlyDecision(t *testing.T) {
	dir := t.TempDir()
	var attempts atomic.Int32
	applied := make(chan struct{}, 1)

	w, err := newControlWatcher(dir, logging.NopLogger(),
		func(gateID string, decision gate.Decision, by, comment string) error {
			if attempts.Add(1) < 2 {
				return errors.ErrGateNotPending
			}
			applied <- struct{}{}
			return nil
		},
		func(reason string) {})
	if err != nil {
		t.Fatalf("newControlWatcher: %v", err)
	}
	w.start()
	defer w.stop()

	if err := WriteGateDecision(dir, "g1", gate.DecisionApproved, "tester", ""); err != nil {
		t.Fatalf("WriteGateDecision: %v", err)
	}

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("early decision never retried to success")
	}
	if got := attempts.Load(); got < 2 {
		t.Errorf("resolve attempts = %d, want at least 2", got)
	}
}

func TestControlWatcher_DiscardsMalformed(t *testing.T) {
	dir := t.TempDir()

	w, err := newControlWatcher(dir, logging.NopLogger(),
		func(gateID string, decision gate.Decision, by, comment string) error {
			t.Error("resolve called for malformed file")
			return nil
		},
		func(reason string) {})
	if err != nil {
		t.Fatalf("newControlWatcher: %v", err)
	}
	w.start()
	defer w.stop()

	path := filepath.Join(dir, "gate-bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write malformed file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("malformed file not discarded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

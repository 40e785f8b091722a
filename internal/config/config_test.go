package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validJSON = `{
	"schemaVersion": "1.0.0",
	"pageSize": 4096,
	"blockSize": 64,
	"dramSize": 4194304,
	"pcmSize": 16777216,
	"processImages": ["a.img", "b.img"],
	"flushPolicy": "FLUSH_PCM_BEFORE",
	"maxFlushQueueSize": 64,
	"demoteTimeout": 1000,
	"maxMigrationTableSize": 256,
	"partitionPeriod": 10000,
	"periodType": "CYCLES",
	"policyWeights": {"ws": 1}
}`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "hmmsim.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAcceptsACompatibleSchema(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validJSON)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageSize != 4096 || cfg.DramSize != 4194304 {
		t.Fatalf("unexpected layout fields: %+v", cfg)
	}
	if _, err := cfg.MigrationConfig(64); err != nil {
		t.Fatalf("MigrationConfig: %v", err)
	}
	if pt, err := cfg.PeriodTypeValue(); err != nil || pt.String() != "CYCLES" {
		t.Fatalf("PeriodTypeValue() = (%v, %v), want (CYCLES, nil)", pt, err)
	}
}

func TestLoadRejectsAnIncompatibleSchema(t *testing.T) {
	body := `{"schemaVersion": "2.0.0", "pageSize": 4096, "blockSize": 64, "dramSize": 4096, "pcmSize": 4096}`
	path := writeConfig(t, t.TempDir(), body)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load should reject schemaVersion 2.0.0 against %s", schemaConstraint)
	}
}

func TestLoadRejectsAnUnknownFlushPolicy(t *testing.T) {
	body := `{"schemaVersion": "1.0.0", "pageSize": 4096, "blockSize": 64, "dramSize": 4096, "pcmSize": 4096, "flushPolicy": "BOGUS"}`
	path := writeConfig(t, t.TempDir(), body)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.MigrationConfig(64); err == nil {
		t.Fatalf("MigrationConfig should reject an unknown flushPolicy")
	}
}

func TestFixedFieldsChangedDetectsLayoutEdits(t *testing.T) {
	a, err := Load(writeConfig(t, t.TempDir(), validJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := *a
	b.DramSize = a.DramSize * 2
	if !a.FixedFieldsChanged(&b) {
		t.Fatalf("FixedFieldsChanged should report a dramSize edit")
	}

	c := *a
	c.DemoteTimeout = a.DemoteTimeout + 1
	if a.FixedFieldsChanged(&c) {
		t.Fatalf("FixedFieldsChanged should ignore a demoteTimeout edit")
	}
}

func TestWatcherStreamsAReloadableEdit(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	edited := `{
		"schemaVersion": "1.0.0",
		"pageSize": 4096,
		"blockSize": 64,
		"dramSize": 4194304,
		"pcmSize": 16777216,
		"processImages": ["a.img", "b.img"],
		"flushPolicy": "FLUSH_PCM_BEFORE",
		"maxFlushQueueSize": 64,
		"demoteTimeout": 5000,
		"maxMigrationTableSize": 256,
		"partitionPeriod": 10000,
		"periodType": "CYCLES",
		"policyWeights": {"ws": 1}
	}`
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case next := <-w.Updates():
		if next.DemoteTimeout != 5000 {
			t.Fatalf("got DemoteTimeout=%d, want 5000", next.DemoteTimeout)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a reload")
	}
}

func TestWatcherRejectsAFixedFieldEdit(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	badEdit := `{
		"schemaVersion": "1.0.0",
		"pageSize": 4096,
		"blockSize": 64,
		"dramSize": 8388608,
		"pcmSize": 16777216,
		"processImages": ["a.img", "b.img"],
		"flushPolicy": "FLUSH_PCM_BEFORE",
		"maxFlushQueueSize": 64,
		"demoteTimeout": 1000,
		"maxMigrationTableSize": 256,
		"partitionPeriod": 10000,
		"periodType": "CYCLES"
	}`
	if err := os.WriteFile(path, []byte(badEdit), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case next := <-w.Updates():
		t.Fatalf("expected a rejection, got an accepted reload: %+v", next)
	case err := <-w.Errors():
		if err == nil {
			t.Fatalf("Errors() delivered a nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the rejection")
	}
}

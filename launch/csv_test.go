package launch

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/server"
	"github.com/pithecene-io/ferry/stress"
)

func TestResultWriter_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewResultWriter(path)
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	sc := Scenario{
		Mode:          server.ModePool,
		Operation:     stress.OpUpload,
		VolumeMB:      50,
		ServerWorkers: 5,
		ClientWorkers: 10,
	}
	result := &ipc.ResultEvent{
		AvgSeconds:    1.5,
		ThroughputBps: 1048576,
		Success:       9,
		Fail:          1,
	}
	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	if err := w.Append(ts, sc, result); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][6] != "avg_time_s" || rows[0][7] != "throughput_Bps" {
		t.Errorf("unexpected header: %v", rows[0])
	}

	row := rows[1]
	want := []string{
		"2026-08-25T12:00:00Z", "pool", "5", "upload", "50", "10",
		"1.500000", "1048576.00", "9", "1",
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d (%s) = %q, want %q", i, rows[0][i], row[i], want[i])
		}
	}
}

func TestResultWriter_PartialResultsSurviveWithoutClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewResultWriter(path)
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	sc := Scenario{Mode: server.ModeSpawn, Operation: stress.OpDownload, VolumeMB: 10, ServerWorkers: 1, ClientWorkers: 1}
	if err := w.Append(time.Now(), sc, &ipc.ResultEvent{Success: 1}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Rows flush per append, so the file is readable before Close.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse partial file (%d bytes): %v", len(data), err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows before Close, want 2", len(rows))
	}
	_ = w.Close()
}

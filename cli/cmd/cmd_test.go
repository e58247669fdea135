package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/launch"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/server"
	"github.com/pithecene-io/ferry/storage"
	"github.com/pithecene-io/ferry/stress"
)

func TestCommandNames(t *testing.T) {
	tests := []struct {
		cmd  *cli.Command
		name string
	}{
		{ServeCommand(), "serve"},
		{StressCommand(), "stress"},
		{SweepCommand(), "sweep"},
		{LsCommand(), "ls"},
		{GetCommand(), "get"},
		{PutCommand(), "put"},
		{RmCommand(), "rm"},
		{VersionCommand("abc"), "version"},
	}
	for _, tt := range tests {
		if tt.cmd.Name != tt.name {
			t.Errorf("command name = %q, want %q", tt.cmd.Name, tt.name)
		}
		if tt.cmd.Action == nil {
			t.Errorf("%s has no action", tt.name)
		}
	}
}

// withSweepContext runs fn inside a CLI invocation carrying the sweep flags.
func withSweepContext(t *testing.T, args []string, fn func(c *cli.Context)) {
	t.Helper()
	ran := false
	app := &cli.App{
		Commands: []*cli.Command{{
			Name:  "sweep",
			Flags: SweepCommand().Flags,
			Action: func(c *cli.Context) error {
				ran = true
				fn(c)
				return nil
			},
		}},
	}
	if err := app.Run(append([]string{"ferry", "sweep"}, args...)); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	if !ran {
		t.Fatal("action never ran")
	}
}

func TestBuildGrid_Defaults(t *testing.T) {
	withSweepContext(t, nil, func(c *cli.Context) {
		grid, err := buildGrid(c, config.SweepConfig{})
		if err != nil {
			t.Fatalf("buildGrid failed: %v", err)
		}
		want := launch.DefaultGrid()
		if len(grid.Modes) != len(want.Modes) || len(grid.VolumesMB) != len(want.VolumesMB) {
			t.Errorf("grid = %+v, want defaults", grid)
		}
	})
}

func TestBuildGrid_FlagsOverrideConfig(t *testing.T) {
	cfg := config.SweepConfig{
		Modes:     []string{"spawn"},
		VolumesMB: []int{5},
	}
	withSweepContext(t, []string{"--modes", "pool", "--volumes", "99"}, func(c *cli.Context) {
		grid, err := buildGrid(c, cfg)
		if err != nil {
			t.Fatalf("buildGrid failed: %v", err)
		}
		if len(grid.Modes) != 1 || grid.Modes[0] != server.ModePool {
			t.Errorf("Modes = %v, want [pool]", grid.Modes)
		}
		if len(grid.VolumesMB) != 1 || grid.VolumesMB[0] != 99 {
			t.Errorf("VolumesMB = %v, want [99]", grid.VolumesMB)
		}
	})
}

func TestBuildGrid_ConfigAppliesWithoutFlags(t *testing.T) {
	cfg := config.SweepConfig{
		Operations:    []string{"download"},
		ClientWorkers: []int{7},
	}
	withSweepContext(t, nil, func(c *cli.Context) {
		grid, err := buildGrid(c, cfg)
		if err != nil {
			t.Fatalf("buildGrid failed: %v", err)
		}
		if len(grid.Operations) != 1 || grid.Operations[0] != stress.OpDownload {
			t.Errorf("Operations = %v, want [download]", grid.Operations)
		}
		if len(grid.ClientWorkers) != 1 || grid.ClientWorkers[0] != 7 {
			t.Errorf("ClientWorkers = %v, want [7]", grid.ClientWorkers)
		}
	})
}

func TestBuildGrid_RejectsBadMode(t *testing.T) {
	withSweepContext(t, []string{"--modes", "threads"}, func(c *cli.Context) {
		if _, err := buildGrid(c, config.SweepConfig{}); err == nil {
			t.Error("buildGrid accepted unknown mode")
		}
	})
}

func TestBuildAdapters(t *testing.T) {
	none, err := buildAdapters(config.AdapterConfig{})
	if err != nil || none != nil {
		t.Errorf("empty config: adapters = %v, err = %v", none, err)
	}

	hooks, err := buildAdapters(config.AdapterConfig{Type: "webhook", URL: "https://example.com/hook"})
	if err != nil || len(hooks) != 1 {
		t.Errorf("webhook: adapters = %v, err = %v", hooks, err)
	}

	if _, err := buildAdapters(config.AdapterConfig{Type: "webhook"}); err == nil {
		t.Error("webhook without URL accepted")
	}
	if _, err := buildAdapters(config.AdapterConfig{Type: "kafka"}); err == nil {
		t.Error("unknown adapter type accepted")
	}

	reds, err := buildAdapters(config.AdapterConfig{Type: "redis", URL: "redis://localhost:6379"})
	if err != nil || len(reds) != 1 {
		t.Errorf("redis: adapters = %v, err = %v", reds, err)
	}
	for _, a := range reds {
		_ = a.Close()
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty = %q, want b", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty = %q, want empty", got)
	}
}

func TestFirstPositive(t *testing.T) {
	if got := firstPositive(0, -1, 4); got != 4 {
		t.Errorf("firstPositive = %d, want 4", got)
	}
	if got := firstPositive(0, 0); got != 0 {
		t.Errorf("firstPositive = %d, want 0", got)
	}
}

// Once the dashboard exits there is no receiver left on the events channel.
// Result delivery must then fall through instead of blocking the sweep
// goroutine forever.
func TestFeedDashboard_ExitedDashboardDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := make(chan tea.Msg)

	done := make(chan struct{})
	go func() {
		feedDashboard(ctx, events)(launch.Scenario{}, &ipc.ResultEvent{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("result delivery blocked with no dashboard receiving")
	}
}

func TestStressCommand_WritesPayloadDir(t *testing.T) {
	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	srv, err := server.New(server.Config{Addr: "127.0.0.1:0", Workers: 2}, store, log.NewNop())
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	payloadDir := t.TempDir()
	var out bytes.Buffer
	app := &cli.App{
		Writer:   &out,
		Commands: []*cli.Command{StressCommand()},
	}
	err = app.Run([]string{"ferry", "stress",
		"--addr", srv.Addr().String(),
		"--volume", "1",
		"--clients", "1",
		"--payload-dir", payloadDir,
		"--format", "json",
	})
	if err != nil {
		t.Fatalf("stress run failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(payloadDir, "payload-1mb.bin"))
	if err != nil {
		t.Fatalf("payload file not written: %v", err)
	}
	if info.Size() != 1<<20 {
		t.Errorf("payload file size = %d, want %d", info.Size(), 1<<20)
	}
}

func TestStressResponse_Table(t *testing.T) {
	resp := StressResponse{
		Operation:  "upload",
		Clients:    5,
		VolumeMB:   10,
		AvgSeconds: 0.5,
		Throughput: "2.00 MB/s",
		Success:    5,
	}
	if len(resp.TableHeaders()) != len(resp.TableRows()[0]) {
		t.Error("header and row column counts differ")
	}
}

func TestFilesResponse_Table(t *testing.T) {
	resp := FilesResponse{Files: []string{"a.png", "b.pdf"}, Count: 2}
	if len(resp.TableRows()) != 2 {
		t.Errorf("rows = %d, want 2", len(resp.TableRows()))
	}
}

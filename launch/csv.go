package launch

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pithecene-io/ferry/ipc"
)

// csvHeader is the stable column set consumers of the results file depend on.
var csvHeader = []string{
	"timestamp",
	"mode",
	"server_pool",
	"operation",
	"volume",
	"client_pool",
	"avg_time_s",
	"throughput_Bps",
	"success",
	"fail",
}

// ResultWriter appends sweep results to a CSV file, one row per scenario.
// Rows are flushed as they arrive so a killed sweep keeps its partial
// results.
type ResultWriter struct {
	file *os.File
	csv  *csv.Writer
}

// NewResultWriter creates (or truncates) the results file and writes the
// header row.
func NewResultWriter(path string) (*ResultWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flush header: %w", err)
	}
	return &ResultWriter{file: f, csv: w}, nil
}

// Append writes one scenario result row.
func (w *ResultWriter) Append(ts time.Time, sc Scenario, result *ipc.ResultEvent) error {
	row := []string{
		ts.Format(time.RFC3339),
		string(sc.Mode),
		strconv.Itoa(sc.ServerWorkers),
		string(sc.Operation),
		strconv.Itoa(sc.VolumeMB),
		strconv.Itoa(sc.ClientWorkers),
		strconv.FormatFloat(result.AvgSeconds, 'f', 6, 64),
		strconv.FormatFloat(result.ThroughputBps, 'f', 2, 64),
		strconv.Itoa(result.Success),
		strconv.Itoa(result.Fail),
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write result row: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush result row: %w", err)
	}
	return nil
}

// Close flushes and closes the results file.
func (w *ResultWriter) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

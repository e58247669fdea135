package stress

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// Payload builds a test payload of the given size. The content is
// pseudorandom but seeded by size, so repeated runs at the same volume
// address the same stored object.
func Payload(sizeMB int) []byte {
	size := sizeMB * 1024 * 1024
	data := make([]byte, size)
	rng := rand.New(rand.NewSource(int64(sizeMB)))
	// rand.Read on a seeded source never fails.
	_, _ = rng.Read(data)
	return data
}

// WritePayloadFile materializes a test payload on disk and returns its path.
// Used by the CLI so operators can inspect or reuse the generated files.
func WritePayloadFile(dir string, sizeMB int) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("payload-%dmb.bin", sizeMB))
	if err := os.WriteFile(path, Payload(sizeMB), 0o644); err != nil {
		return "", fmt.Errorf("write payload file: %w", err)
	}
	return path, nil
}

// FormatRate renders a byte rate with a binary unit suffix.
func FormatRate(bps float64) string {
	units := []string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s", "PB/s"}
	i := 0
	for bps >= 1024 && i < len(units)-1 {
		bps /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", bps, units[i])
}

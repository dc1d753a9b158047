package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var summaryHeader = []string{
	"Scenario", "Resolution", "Iterations", "FPS", "Total_Duration_ms",
	"Avg_Latency_ms", "P95_Latency_ms", "Alloc_MB", "Detections", "Error_Rate",
}

// SaveResults writes the collected results as indented JSON and a CSV summary.
//
// Returns:
//   - string: The JSON results path.
//   - string: The CSV summary path.
//   - error: An error if either file cannot be written.
func (s *Suite) SaveResults() (string, string, error) {
	results := s.Results()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))
	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}
	if err := writeSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}
	return resultsFile, summaryFile, nil
}

func writeSummaryCSV(path string, results []Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Scenario.Name,
			r.Scenario.Resolution.Name,
			strconv.Itoa(r.Scenario.Iterations),
			fmt.Sprintf("%.2f", r.FramesPerSecond),
			fmt.Sprintf("%.2f", ms(r.TotalDuration)),
			fmt.Sprintf("%.3f", ms(r.Latency.Avg)),
			fmt.Sprintf("%.3f", ms(r.Latency.P95)),
			fmt.Sprintf("%.2f", float64(r.MemoryStats.AllocBytes)/(1024*1024)),
			strconv.Itoa(r.DetectionCount),
			fmt.Sprintf("%.4f", r.ErrorRate),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

package cyclelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stock-analysis-bot/internal/marketclock"
	"stock-analysis-bot/internal/types"
)

var mu sync.Mutex

func exportDir(configured string) string {
	if v := os.Getenv("ANALYSIS_EXPORT_DIR"); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return "data"
}

// reportFilepath picks the first unused name for the cycle's timestamp.
// Two cycles starting inside the same second get _2, _3, ... suffixes
// instead of clobbering the earlier export.
func reportFilepath(dir string, t time.Time) string {
	stamp := t.In(marketclock.KST).Format("20060102_150405")
	p := filepath.Join(dir, "analysis_"+stamp+".json")
	for n := 2; fileExists(p); n++ {
		p = filepath.Join(dir, fmt.Sprintf("analysis_%s_%d.json", stamp, n))
	}
	return p
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Write exports one sealed cycle report as a pretty-printed JSON file named
// after the cycle's start time. Reports are write-once, never appended to.
func Write(dir string, report *types.CycleReport) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	dir = exportDir(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	p := reportFilepath(dir, report.StartedAt)
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// CompressOlder gzips report files older than retentionDays. Already
// compressed files are left alone.
func CompressOlder(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := exportDir(dir)
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(p) != ".json" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		// if already gz exists, remove the original
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}

		in, e3 := os.Open(p)
		if e3 != nil {
			return nil
		}
		defer in.Close()

		out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e4 != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		if _, e5 := io.Copy(gw, in); e5 == nil {
			_ = gw.Close()
			_ = out.Close()
			_ = os.Remove(p)
		} else {
			_ = gw.Close()
			_ = out.Close()
		}
		return nil
	})
}

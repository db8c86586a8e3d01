package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Meta struct {
	Tick      uint64 `json:"tick"`
	Claims    int    `json:"claims"`
	Sales     int    `json:"sales"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveSnapshot copies the current claim snapshot into
// `dataDir/archives/tick_<N>/` so an operator can roll the world back past
// the live document. The live snapshot file keeps being overwritten in
// place; archives are the only history.
func ArchiveSnapshot(dataDir, snapshotPath string, tick uint64, claims, sales int) (string, error) {
	dir := filepath.Join(dataDir, "archives", fmt.Sprintf("tick_%012d", tick))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := Meta{
		Tick:      tick,
		Claims:    claims,
		Sales:     sales,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return dst, nil
}

// Prune keeps the newest keep archives and removes the rest. keep <= 0
// disables pruning.
func Prune(dataDir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	root := filepath.Join(dataDir, "archives")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var ticks []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "tick_") {
			ticks = append(ticks, e.Name())
		}
	}
	if len(ticks) <= keep {
		return nil
	}
	// Zero-padded tick names sort chronologically.
	sort.Strings(ticks)
	for _, name := range ticks[:len(ticks)-keep] {
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

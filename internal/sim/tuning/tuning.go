package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the runtime knobs loaded from tuning.yaml. Zero values fall
// back to the defaults below, so a partial file is fine.
type Tuning struct {
	TickRateHz          int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks  int `yaml:"snapshot_every_ticks"`
	NameCacheFlushTicks int `yaml:"name_cache_flush_ticks"`

	// Presence re-check policy: 0 re-evaluates on every position change,
	// a positive value only after moving that squared distance.
	PresenceThresholdSq int `yaml:"presence_threshold_sq"`

	// Archive cadence: every N ticks the live snapshot is copied into
	// data/archives, keeping the newest ArchiveKeep copies.
	ArchiveEveryTicks int `yaml:"archive_every_ticks"`
	ArchiveKeep       int `yaml:"archive_keep"`

	AllowedSizes    []int    `yaml:"allowed_sizes"`
	StartingBalance int      `yaml:"starting_balance"`
	Admins          []string `yaml:"admins"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:          20,
		SnapshotEveryTicks:  1200,  // once a minute at 20 Hz
		NameCacheFlushTicks: 36000, // 30 minutes at 20 Hz
		PresenceThresholdSq: 0,
		ArchiveEveryTicks:   72000, // hourly at 20 Hz
		ArchiveKeep:         24,
		AllowedSizes:        []int{16, 32},
		StartingBalance:     500,
	}
}

// Load reads path and overlays it on Defaults. A missing file returns
// Defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	var in Tuning
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if in.TickRateHz > 0 {
		t.TickRateHz = in.TickRateHz
	}
	if in.SnapshotEveryTicks > 0 {
		t.SnapshotEveryTicks = in.SnapshotEveryTicks
	}
	if in.NameCacheFlushTicks > 0 {
		t.NameCacheFlushTicks = in.NameCacheFlushTicks
	}
	if in.PresenceThresholdSq > 0 {
		t.PresenceThresholdSq = in.PresenceThresholdSq
	}
	if in.ArchiveEveryTicks > 0 {
		t.ArchiveEveryTicks = in.ArchiveEveryTicks
	}
	if in.ArchiveKeep > 0 {
		t.ArchiveKeep = in.ArchiveKeep
	}
	if len(in.AllowedSizes) > 0 {
		t.AllowedSizes = in.AllowedSizes
	}
	if in.StartingBalance > 0 {
		t.StartingBalance = in.StartingBalance
	}
	if len(in.Admins) > 0 {
		t.Admins = in.Admins
	}
	return t, nil
}

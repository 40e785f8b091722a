// Package config loads and validates the simulator's JSON configuration,
// and watches the config file for live-reloadable changes.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/migration"
	"github.com/hmmsim/hmmsim/internal/partition"
)

// schemaConstraint is the range of config schemaVersions this build of
// hmmsim understands. Bump the lower bound when a reload-incompatible
// field is added; bump the upper bound when a new major schema ships.
const schemaConstraint = ">= 1.0.0, < 2.0.0"

// Config is the on-disk shape of a simulator run. Fields are grouped by
// whether the Watcher accepts a change to them at runtime (see
// FixedFieldsChanged): layout and allocation are fixed at construction,
// the migration/partition tunables are not.
type Config struct {
	SchemaVersion string `json:"schemaVersion"`

	// Layout, fixed for the lifetime of a run.
	PageSize  uint64 `json:"pageSize"`
	BlockSize uint64 `json:"blockSize"`
	DramSize  uint64 `json:"dramSize"`
	PcmSize   uint64 `json:"pcmSize"`

	// Allocation input, fixed for the lifetime of a run.
	ProcessImages []string `json:"processImages"`

	// Migration tunables, reloadable.
	FlushPolicy             string `json:"flushPolicy"`
	MaxFlushQueueSize       int    `json:"maxFlushQueueSize"`
	SuppressFlushWritebacks bool   `json:"suppressFlushWritebacks"`
	DemoteTimeout           uint64 `json:"demoteTimeout"`
	MaxMigrationTableSize   int    `json:"maxMigrationTableSize"`

	// Partition tunables, reloadable.
	PartitionPeriod uint64         `json:"partitionPeriod"`
	PeriodType      string         `json:"periodType"`
	PolicyWeights   map[string]int `json:"policyWeights"`

	// Optional outputs.
	PerPageStats         bool   `json:"perPageStats"`
	PerPageStatsFilename string `json:"perPageStatsFilename"`
	StatsDBPath          string `json:"statsDbPath"`
	StatsServerAddr      string `json:"statsServerAddr"`
}

// Load reads path, parses it as JSON and validates its schemaVersion
// against schemaConstraint.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.checkSchema(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) checkSchema() error {
	constraint, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return fmt.Errorf("config: internal constraint %q: %w", schemaConstraint, err)
	}
	v, err := semver.NewVersion(c.SchemaVersion)
	if err != nil {
		return fmt.Errorf("config: schemaVersion %q: %w", c.SchemaVersion, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config: schemaVersion %s does not satisfy %s", v, schemaConstraint)
	}
	return nil
}

// FixedFieldsChanged reports whether next alters any field that cannot
// be applied to a running simulation: layout or the process-image list.
// The reload watcher rejects a next with any of these changed.
func (c *Config) FixedFieldsChanged(next *Config) bool {
	if c.PageSize != next.PageSize || c.BlockSize != next.BlockSize ||
		c.DramSize != next.DramSize || c.PcmSize != next.PcmSize {
		return true
	}
	if len(c.ProcessImages) != len(next.ProcessImages) {
		return true
	}
	for i := range c.ProcessImages {
		if c.ProcessImages[i] != next.ProcessImages[i] {
			return true
		}
	}
	return false
}

// Layout builds the addrspace.Layout the fixed fields describe.
func (c *Config) Layout() (*addrspace.Layout, error) {
	return addrspace.NewLayout(c.PageSize, c.BlockSize, c.DramSize, c.PcmSize)
}

// MigrationConfig translates the reloadable migration fields into
// migration.Config. blocksPerPage comes from the Layout the fixed
// fields already built, since migration.Config has no notion of byte
// sizes of its own.
func (c *Config) MigrationConfig(blocksPerPage int) (migration.Config, error) {
	policy, err := parseFlushPolicy(c.FlushPolicy)
	if err != nil {
		return migration.Config{}, err
	}
	return migration.Config{
		FlushPolicy:             policy,
		MaxFlushQueueSize:       c.MaxFlushQueueSize,
		SuppressFlushWritebacks: c.SuppressFlushWritebacks,
		DemoteTimeout:           c.DemoteTimeout,
		MaxMigrationTableSize:   c.MaxMigrationTableSize,
		BlocksPerPage:           blocksPerPage,
	}, nil
}

// PeriodTypeValue translates the JSON periodType string into
// partition.PeriodType.
func (c *Config) PeriodTypeValue() (partition.PeriodType, error) {
	switch c.PeriodType {
	case "CYCLES", "":
		return partition.Cycles, nil
	case "INSTRUCTIONS":
		return partition.Instructions, nil
	default:
		return 0, fmt.Errorf("config: unknown periodType %q", c.PeriodType)
	}
}

func parseFlushPolicy(s string) (migration.FlushPolicy, error) {
	switch s {
	case "FLUSH_PCM_BEFORE", "":
		return migration.FlushPcmBefore, nil
	case "FLUSH_ONLY_AFTER":
		return migration.FlushOnlyAfter, nil
	case "REMAP":
		return migration.Remap, nil
	case "CHANGE_TAG":
		return migration.ChangeTag, nil
	default:
		return 0, fmt.Errorf("config: unknown flushPolicy %q", s)
	}
}

// Package config holds the JSON processing configuration. Fields are
// pointers so a partial config file only overrides what it names; the Get*
// methods supply the defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hydroline-data/swathproc/internal/vertref"
)

// ProcessingConfig is the root configuration for a processing run. The
// schema is shared between the CLI flags file and programmatic use, so all
// fields are optional.
type ProcessingConfig struct {
	// Pipeline selection and vertical reference
	VerticalReference *string  `json:"vertical_reference,omitempty"`
	Waterline         *float64 `json:"waterline,omitempty"`
	ZOffset           *float64 `json:"z_offset,omitempty"`
	InputEPSG         *int     `json:"input_epsg,omitempty"`
	OutputEPSG        *int     `json:"output_epsg,omitempty"`
	GeohashPrecision  *int     `json:"geohash_precision,omitempty"`

	// Vertical datum / tide model resources
	VdatumDirectory    *string `json:"vdatum_directory,omitempty"`
	TideModelDirectory *string `json:"tide_model_directory,omitempty"`

	// Backscatter params
	AVGBinSize             *float64 `json:"avg_bin_size,omitempty"`
	AVGReferenceAngle      *float64 `json:"avg_reference_angle,omitempty"`
	RemoveFixedGain        *bool    `json:"remove_fixed_gain,omitempty"`
	AddTVG                 *bool    `json:"add_tvg,omitempty"`
	RemoveTransmissionLoss *bool    `json:"remove_transmission_loss,omitempty"`
	RemoveArea             *bool    `json:"remove_area,omitempty"`

	// Chunking and cluster sizing
	Workers          *int     `json:"workers,omitempty"`
	MaxChunkLen      *int     `json:"max_chunk_len,omitempty"`
	ChunksPerWorker  *int     `json:"chunks_per_worker,omitempty"`
	SafetyMargin     *float64 `json:"safety_margin,omitempty"`
	RestartThreshold *float64 `json:"restart_threshold,omitempty"`
	PoolAddress      *string  `json:"pool_address,omitempty"`

	// Run registry and reports
	RunDatabase     *string `json:"run_database,omitempty"`
	ReportDirectory *string `json:"report_directory,omitempty"`
}

// Load reads a ProcessingConfig from a JSON file. Fields omitted from the
// file fall back to defaults through the Get* methods.
func Load(path string) (*ProcessingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ProcessingConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that have constraints.
func (c *ProcessingConfig) Validate() error {
	if c.VerticalReference != nil {
		if !vertref.Mode(*c.VerticalReference).Valid() {
			return fmt.Errorf("unrecognized vertical_reference %q", *c.VerticalReference)
		}
	}
	if c.GeohashPrecision != nil && (*c.GeohashPrecision < 1 || *c.GeohashPrecision > 12) {
		return fmt.Errorf("geohash_precision must be between 1 and 12, got %d", *c.GeohashPrecision)
	}
	if c.AVGBinSize != nil && *c.AVGBinSize <= 0 {
		return fmt.Errorf("avg_bin_size must be positive, got %f", *c.AVGBinSize)
	}
	if c.SafetyMargin != nil && (*c.SafetyMargin <= 0 || *c.SafetyMargin > 1) {
		return fmt.Errorf("safety_margin must be in (0, 1], got %f", *c.SafetyMargin)
	}
	if c.RestartThreshold != nil && (*c.RestartThreshold <= 0 || *c.RestartThreshold > 1) {
		return fmt.Errorf("restart_threshold must be in (0, 1], got %f", *c.RestartThreshold)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

// GetVerticalReference returns the vertical reference mode or the default.
func (c *ProcessingConfig) GetVerticalReference() vertref.Mode {
	if c.VerticalReference == nil {
		return vertref.Waterline
	}
	return vertref.Mode(*c.VerticalReference)
}

// GetWaterline returns the waterline offset or the default.
func (c *ProcessingConfig) GetWaterline() float64 {
	if c.Waterline == nil {
		return 0
	}
	return *c.Waterline
}

// GetZOffset returns the reference-point lever arm or the default.
func (c *ProcessingConfig) GetZOffset() float64 {
	if c.ZOffset == nil {
		return 0
	}
	return *c.ZOffset
}

// GetInputEPSG returns the input horizontal system or the default
// geographic WGS84.
func (c *ProcessingConfig) GetInputEPSG() int {
	if c.InputEPSG == nil {
		return 4326
	}
	return *c.InputEPSG
}

// GetOutputEPSG returns the output horizontal system or the default (same
// as input).
func (c *ProcessingConfig) GetOutputEPSG() int {
	if c.OutputEPSG == nil {
		return c.GetInputEPSG()
	}
	return *c.OutputEPSG
}

// GetGeohashPrecision returns the spatial tag code length or the default.
func (c *ProcessingConfig) GetGeohashPrecision() int {
	if c.GeohashPrecision == nil {
		return 7
	}
	return *c.GeohashPrecision
}

// GetVdatumDirectory returns the separation grid directory, empty when
// tidal-datum output is not configured.
func (c *ProcessingConfig) GetVdatumDirectory() string {
	if c.VdatumDirectory == nil {
		return ""
	}
	return *c.VdatumDirectory
}

// GetTideModelDirectory returns the tide model directory, empty when the
// tide-corrected mode is not configured.
func (c *ProcessingConfig) GetTideModelDirectory() string {
	if c.TideModelDirectory == nil {
		return ""
	}
	return *c.TideModelDirectory
}

// GetAVGBinSize returns the angle corrector bin width or the default.
func (c *ProcessingConfig) GetAVGBinSize() float64 {
	if c.AVGBinSize == nil {
		return 1.0
	}
	return *c.AVGBinSize
}

// GetAVGReferenceAngle returns the angle corrector reference or the
// default 45 degrees.
func (c *ProcessingConfig) GetAVGReferenceAngle() float64 {
	if c.AVGReferenceAngle == nil {
		return 45.0
	}
	return *c.AVGReferenceAngle
}

// GetRemoveFixedGain returns the fixed-gain stage toggle or the default.
func (c *ProcessingConfig) GetRemoveFixedGain() bool {
	if c.RemoveFixedGain == nil {
		return true
	}
	return *c.RemoveFixedGain
}

// GetAddTVG returns the TVG stage toggle or the default.
func (c *ProcessingConfig) GetAddTVG() bool {
	if c.AddTVG == nil {
		return true
	}
	return *c.AddTVG
}

// GetRemoveTransmissionLoss returns the transmission-loss stage toggle or
// the default.
func (c *ProcessingConfig) GetRemoveTransmissionLoss() bool {
	if c.RemoveTransmissionLoss == nil {
		return true
	}
	return *c.RemoveTransmissionLoss
}

// GetRemoveArea returns the area stage toggle or the default.
func (c *ProcessingConfig) GetRemoveArea() bool {
	if c.RemoveArea == nil {
		return true
	}
	return *c.RemoveArea
}

// GetWorkers returns the worker override; zero means detect from the
// machine.
func (c *ProcessingConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetMaxChunkLen returns the per-chunk ping cap; zero means uncapped.
func (c *ProcessingConfig) GetMaxChunkLen() int {
	if c.MaxChunkLen == nil {
		return 0
	}
	return *c.MaxChunkLen
}

// GetChunksPerWorker returns the in-flight chunk count per worker or the
// default.
func (c *ProcessingConfig) GetChunksPerWorker() int {
	if c.ChunksPerWorker == nil {
		return 2
	}
	return *c.ChunksPerWorker
}

// GetSafetyMargin returns the usable-memory fraction or the default.
func (c *ProcessingConfig) GetSafetyMargin() float64 {
	if c.SafetyMargin == nil {
		return 0.5
	}
	return *c.SafetyMargin
}

// GetRestartThreshold returns the memory restart threshold or the default.
func (c *ProcessingConfig) GetRestartThreshold() float64 {
	if c.RestartThreshold == nil {
		return 0.75
	}
	return *c.RestartThreshold
}

// GetPoolAddress returns the worker pool address; empty is the local
// machine.
func (c *ProcessingConfig) GetPoolAddress() string {
	if c.PoolAddress == nil {
		return ""
	}
	return *c.PoolAddress
}

// GetRunDatabase returns the run registry path or the default.
func (c *ProcessingConfig) GetRunDatabase() string {
	if c.RunDatabase == nil {
		return "swathproc_runs.db"
	}
	return *c.RunDatabase
}

// GetReportDirectory returns where reports and plots are written.
func (c *ProcessingConfig) GetReportDirectory() string {
	if c.ReportDirectory == nil {
		return "reports"
	}
	return *c.ReportDirectory
}

// Command swathproc runs the georeferencing or backscatter pipeline over a
// JSON-encoded batch of pings, records the run in the registry database and
// writes results plus diagnostics reports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydroline-data/swathproc/internal/backscatter"
	"github.com/hydroline-data/swathproc/internal/chunk"
	"github.com/hydroline-data/swathproc/internal/config"
	"github.com/hydroline-data/swathproc/internal/datum"
	"github.com/hydroline-data/swathproc/internal/geodesy"
	"github.com/hydroline-data/swathproc/internal/geohash"
	"github.com/hydroline-data/swathproc/internal/georef"
	"github.com/hydroline-data/swathproc/internal/pool"
	"github.com/hydroline-data/swathproc/internal/report"
	"github.com/hydroline-data/swathproc/internal/runlog"
	"github.com/hydroline-data/swathproc/internal/security"
	"github.com/hydroline-data/swathproc/internal/spatial"
	"github.com/hydroline-data/swathproc/internal/swath"
	"github.com/hydroline-data/swathproc/internal/version"
	"github.com/hydroline-data/swathproc/internal/vertref"
)

var (
	configPath  = flag.String("config", "processing.json", "Processing configuration file")
	pipeline    = flag.String("pipeline", runlog.PipelineGeoreference, "Pipeline to run: georeference or backscatter")
	inputPath   = flag.String("input", "", "JSON batch input file")
	outputPath  = flag.String("output", "results.json", "Result output file")
	migrations  = flag.String("migrations", "migrations", "Run registry migrations directory")
	label       = flag.String("label", "run", "Label used in report file names")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// jsonGrid maps JSON null to the NaN missing-value convention, which plain
// float64 JSON cannot carry.
type jsonGrid [][]*float64

func (g jsonGrid) grid() swath.Grid {
	out := make(swath.Grid, len(g))
	for i, row := range g {
		r := make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				r[j] = math.NaN()
			} else {
				r[j] = *v
			}
		}
		out[i] = r
	}
	return out
}

func toJSONGrid(g swath.Grid) jsonGrid {
	out := make(jsonGrid, len(g))
	for i, row := range g {
		r := make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				val := v
				r[j] = &val
			}
		}
		out[i] = r
	}
	return out
}

// jsonPoint is a geographic polygon vertex in the input document.
type jsonPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// batchDocument is the JSON input schema covering both pipelines; the
// backscatter fields stay empty for georeferencing runs and vice versa.
type batchDocument struct {
	// Georeferencing inputs
	AlongTrack  jsonGrid  `json:"along_track,omitempty"`
	AcrossTrack jsonGrid  `json:"across_track,omitempty"`
	DepthOffset jsonGrid  `json:"depth_offset,omitempty"`
	Times       []float64 `json:"times"`
	Longitude   []float64 `json:"longitude,omitempty"`
	Latitude    []float64 `json:"latitude,omitempty"`
	Heading     []float64 `json:"heading,omitempty"`
	Heave       []float64 `json:"heave,omitempty"`
	Altitude    []float64 `json:"altitude,omitempty"`

	// Backscatter inputs
	RawIntensity      jsonGrid  `json:"raw_intensity,omitempty"`
	SlantRange        jsonGrid  `json:"slant_range,omitempty"`
	BeamAngle         jsonGrid  `json:"beam_angle,omitempty"`
	SurfaceSoundSpeed []float64 `json:"surface_sound_speed,omitempty"`
	SonarFamily       string    `json:"sonar_family,omitempty"`

	// Optional selection polygon; georeferenced soundings inside it are
	// reported in the output. Geographic coordinates, ring closed
	// implicitly.
	QueryPolygon []jsonPoint `json:"query_polygon,omitempty"`

	Reson7k        *backscatter.Reson7kParams        `json:"reson7k,omitempty"`
	KongsbergAll   *backscatter.KongsbergAllParams   `json:"kongsberg_all,omitempty"`
	KongsbergKmall *backscatter.KongsbergKmallParams `json:"kongsberg_kmall,omitempty"`
}

func (d *batchDocument) soundingBatch() *swath.SoundingBatch {
	return &swath.SoundingBatch{
		AlongTrack:  d.AlongTrack.grid(),
		AcrossTrack: d.AcrossTrack.grid(),
		DepthOffset: d.DepthOffset.grid(),
		Times:       d.Times,
		Longitude:   d.Longitude,
		Latitude:    d.Latitude,
		Heading:     d.Heading,
		Heave:       d.Heave,
		Altitude:    d.Altitude,
	}
}

func (d *batchDocument) familyParams() (any, error) {
	switch backscatter.Family(d.SonarFamily) {
	case backscatter.FamilyReson7k:
		if d.Reson7k == nil {
			return nil, fmt.Errorf("sonar family %s needs the reson7k parameter block", d.SonarFamily)
		}
		return *d.Reson7k, nil
	case backscatter.FamilyKongsbergAll:
		if d.KongsbergAll == nil {
			return nil, fmt.Errorf("sonar family %s needs the kongsberg_all parameter block", d.SonarFamily)
		}
		return *d.KongsbergAll, nil
	case backscatter.FamilyKongsbergKmall:
		if d.KongsbergKmall == nil {
			return nil, fmt.Errorf("sonar family %s needs the kongsberg_kmall parameter block", d.SonarFamily)
		}
		return *d.KongsbergKmall, nil
	}
	return nil, fmt.Errorf("sonar family %q is not supported for backscatter processing", d.SonarFamily)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("swathproc %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *inputPath == "" {
		log.Fatal("an -input batch file is required")
	}
	log.Printf("swathproc %s (%s) starting pipeline %s", version.Version, version.GitSHA, *pipeline)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("failed to read input batch: %v", err)
	}
	var doc batchDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Fatalf("failed to parse input batch: %v", err)
	}

	db, err := runlog.NewDB(cfg.GetRunDatabase())
	if err != nil {
		log.Fatalf("failed to open run registry: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(*migrations); err != nil {
		log.Fatalf("failed to migrate run registry: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *pipeline {
	case runlog.PipelineGeoreference:
		err = runGeoreference(ctx, cfg, &doc, db)
	case runlog.PipelineBackscatter:
		err = runBackscatter(ctx, cfg, &doc, db)
	default:
		log.Fatalf("unknown pipeline %q", *pipeline)
	}
	if err != nil {
		log.Fatalf("pipeline %s failed: %v", *pipeline, err)
	}
	log.Printf("pipeline %s complete, results in %s", *pipeline, *outputPath)
}

func buildPool(cfg *config.ProcessingConfig) (*pool.Pool, error) {
	return pool.FindOrStart(cfg.GetPoolAddress(), pool.Options{
		Workers:          cfg.GetWorkers(),
		RestartThreshold: cfg.GetRestartThreshold(),
	})
}

// tideCorrector predicts the per-ping tide correction when the run uses the
// tide-corrected mode; other modes get nil.
func tideCorrector(cfg *config.ProcessingConfig, b *swath.SoundingBatch) ([]float64, error) {
	if cfg.GetVerticalReference() != vertref.TideModel {
		return nil, nil
	}
	dir := cfg.GetTideModelDirectory()
	if dir == "" {
		return nil, fmt.Errorf("vertical reference %q requires tide_model_directory", vertref.TideModel)
	}
	lon := math.NaN()
	for _, v := range b.Longitude {
		if !math.IsNaN(v) {
			lon = v
			break
		}
	}
	if math.IsNaN(lon) {
		return nil, fmt.Errorf("batch has no valid longitude to determine the tide region")
	}
	region, err := datum.DetermineRegion(lon)
	if err != nil {
		return nil, err
	}
	var cache datum.ModelCache
	defer cache.Clear()
	return datum.TideCorrection(&cache, dir, b.Latitude, b.Longitude, b.Times, region, "mllw")
}

type georefOutput struct {
	X           jsonGrid   `json:"x"`
	Y           jsonGrid   `json:"y"`
	Depth       jsonGrid   `json:"depth"`
	Uncertainty jsonGrid   `json:"uncertainty"`
	Geohash     [][]string `json:"geohash"`
	Status      [][]uint8  `json:"status"`

	// Filled when the input carries a query polygon.
	PolygonSoundings []polygonSounding `json:"polygon_soundings,omitempty"`
}

type polygonSounding struct {
	Time  int     `json:"time"`
	Beam  int     `json:"beam"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Depth float64 `json:"depth"`
}

// selectInPolygon indexes the run's soundings and answers the input
// polygon. Selection works in geographic coordinates, so projected-output
// runs skip it.
func selectInPolygon(cfg *config.ProcessingConfig, doc *batchDocument, results []any) ([]polygonSounding, error) {
	if len(doc.QueryPolygon) < 3 {
		return nil, nil
	}
	output, err := geodesy.FromEPSG(cfg.GetOutputEPSG())
	if err != nil {
		return nil, err
	}
	if output.Projected {
		return nil, fmt.Errorf("polygon selection requires a geographic output system, got EPSG %d", cfg.GetOutputEPSG())
	}

	idx := spatial.NewIndex()
	base := 0
	for _, v := range results {
		res := v.(*georef.Result)
		idx.InsertResult(res, base)
		base += len(res.X)
	}

	poly := make(geohash.Polygon, len(doc.QueryPolygon))
	for i, p := range doc.QueryPolygon {
		poly[i] = geohash.Point{Lat: p.Lat, Lon: p.Lon}
	}
	hits, err := idx.QueryPolygon(poly, cfg.GetGeohashPrecision())
	if err != nil {
		return nil, err
	}
	out := make([]polygonSounding, len(hits))
	for i, s := range hits {
		out[i] = polygonSounding{Time: s.TimeIdx, Beam: s.BeamIdx, Lon: s.Lon, Lat: s.Lat, Depth: s.Depth}
	}
	return out, nil
}

func runGeoreference(ctx context.Context, cfg *config.ProcessingConfig, doc *batchDocument, db *runlog.DB) error {
	b := doc.soundingBatch()
	if err := b.Validate(); err != nil {
		return fmt.Errorf("input batch: %w", err)
	}

	input, err := geodesy.FromEPSG(cfg.GetInputEPSG())
	if err != nil {
		return err
	}
	output, err := geodesy.FromEPSG(cfg.GetOutputEPSG())
	if err != nil {
		return err
	}

	mode := cfg.GetVerticalReference()
	resolver := &vertref.Resolver{
		Input:     input,
		Output:    output,
		Waterline: cfg.GetWaterline(),
		ZOffset:   cfg.GetZOffset(),
	}
	projector := &georef.Projector{
		Input:            input,
		Output:           output,
		GeohashPrecision: cfg.GetGeohashPrecision(),
	}
	if _, isDatum := mode.TidalDatum(); isDatum {
		store, err := datum.OpenGridStore(cfg.GetVdatumDirectory())
		if err != nil {
			return err
		}
		projector.Store = store
	}

	tide, err := tideCorrector(cfg, b)
	if err != nil {
		return err
	}

	p, err := buildPool(cfg)
	if err != nil {
		return err
	}
	ranges, err := chunk.SplitByWorkers(b.PingCount(), p.Workers(), cfg.GetMaxChunkLen())
	if err != nil {
		return err
	}

	runID, err := db.StartRun(runlog.PipelineGeoreference, string(mode), len(ranges))
	if err != nil {
		return err
	}

	results, err := p.Map(ctx, ranges, func(ctx context.Context, r chunk.Range) (any, error) {
		slice := b.Slice(r.Start, r.End)
		var sliceTide []float64
		if tide != nil {
			sliceTide = tide[r.Start:r.End]
		}
		vr, err := resolver.Resolve(mode, slice, sliceTide)
		if err != nil {
			return nil, err
		}
		res, err := projector.Georeference(slice, mode, vr)
		if err != nil {
			return nil, err
		}
		if err := db.RecordChunk(runID, r.Len()*len(res.X[0])); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		if ferr := db.FailRun(runID, err); ferr != nil {
			log.Printf("failed to record run failure: %v", ferr)
		}
		return err
	}

	out := georefOutput{}
	total, good := 0, 0
	for _, v := range results {
		res := v.(*georef.Result)
		out.X = append(out.X, toJSONGrid(res.X)...)
		out.Y = append(out.Y, toJSONGrid(res.Y)...)
		out.Depth = append(out.Depth, toJSONGrid(res.Depth)...)
		out.Uncertainty = append(out.Uncertainty, toJSONGrid(res.Uncertainty)...)
		out.Geohash = append(out.Geohash, res.Geohash...)
		out.Status = append(out.Status, res.Status...)
		for i := range res.X {
			for j := range res.X[i] {
				total++
				if !math.IsNaN(res.X[i][j]) {
					good++
				}
			}
		}
	}
	completeness := 0.0
	if total > 0 {
		completeness = float64(good) / float64(total)
	}
	if err := db.CompleteRun(runID, completeness); err != nil {
		return err
	}

	selected, err := selectInPolygon(cfg, doc, results)
	if err != nil {
		return err
	}
	out.PolygonSoundings = selected
	if len(doc.QueryPolygon) >= 3 {
		log.Printf("polygon selection matched %d soundings", len(selected))
	}

	return writeJSON(*outputPath, out)
}

type backscatterOutput struct {
	Corrected jsonGrid `json:"corrected"`
	AVGApplied jsonGrid `json:"avg_applied"`
}

func runBackscatter(ctx context.Context, cfg *config.ProcessingConfig, doc *batchDocument, db *runlog.DB) error {
	raw := doc.RawIntensity.grid()
	slant := doc.SlantRange.grid()
	angle := doc.BeamAngle.grid()
	times, beams := raw.Shape()
	if times == 0 || beams == 0 {
		return fmt.Errorf("input batch carries no intensity samples")
	}
	if err := slant.CheckShape(times, beams); err != nil {
		return fmt.Errorf("slant range: %w", err)
	}
	if err := angle.CheckShape(times, beams); err != nil {
		return fmt.Errorf("beam angle: %w", err)
	}
	if len(doc.SurfaceSoundSpeed) != times {
		return fmt.Errorf("surface sound speed has %d entries, expected %d pings", len(doc.SurfaceSoundSpeed), times)
	}

	params, err := doc.familyParams()
	if err != nil {
		return err
	}

	settings := backscatter.Settings{
		RemoveFixedGain:        cfg.GetRemoveFixedGain(),
		AddTVG:                 cfg.GetAddTVG(),
		RemoveTransmissionLoss: cfg.GetRemoveTransmissionLoss(),
		RemoveArea:             cfg.GetRemoveArea(),
	}

	p, err := buildPool(cfg)
	if err != nil {
		return err
	}
	ranges, err := chunk.SplitByWorkers(times, p.Workers(), cfg.GetMaxChunkLen())
	if err != nil {
		return err
	}

	runID, err := db.StartRun(runlog.PipelineBackscatter, "", len(ranges))
	if err != nil {
		return err
	}

	var firstComponents []backscatter.Component
	results, err := p.Map(ctx, ranges, func(ctx context.Context, r chunk.Range) (any, error) {
		geo := backscatter.Geometry{
			RawIntensity:      raw[r.Start:r.End],
			SlantRange:        slant[r.Start:r.End],
			BeamAngle:         angle[r.Start:r.End],
			SurfaceSoundSpeed: doc.SurfaceSoundSpeed[r.Start:r.End],
		}
		sliceParams, err := sliceFamilyParams(params, r)
		if err != nil {
			return nil, err
		}
		model, err := backscatter.NewModel(backscatter.Family(doc.SonarFamily), sliceParams, geo)
		if err != nil {
			return nil, err
		}
		c := &backscatter.Corrector{Model: model, Settings: settings, RecordComponents: r.Start == 0}
		out, err := c.Process()
		if err != nil {
			return nil, err
		}
		if r.Start == 0 {
			firstComponents = c.Components()
		}
		if err := db.RecordChunk(runID, r.Len()*beams); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if ferr := db.FailRun(runID, err); ferr != nil {
			log.Printf("failed to record run failure: %v", ferr)
		}
		return err
	}

	corrected := make(swath.Grid, 0, times)
	for _, v := range results {
		corrected = append(corrected, v.(swath.Grid)...)
	}

	table, err := backscatter.GenerateAVGCorrector(corrected, angle, cfg.GetAVGBinSize(), cfg.GetAVGReferenceAngle())
	if err != nil {
		return err
	}
	applied, err := backscatter.ApplyAVGCorrector(corrected, angle, table)
	if err != nil {
		return err
	}

	good, total := 0, 0
	for i := range applied {
		for j := range applied[i] {
			total++
			if !math.IsNaN(applied[i][j]) {
				good++
			}
		}
	}
	completeness := 0.0
	if total > 0 {
		completeness = float64(good) / float64(total)
	}
	if err := db.CompleteRun(runID, completeness); err != nil {
		return err
	}

	reportDir := cfg.GetReportDirectory()
	reportLabel := security.SanitizeFilename(*label)
	if path, err := report.WriteBackscatterReport(reportDir, reportLabel, table, firstComponents); err != nil {
		log.Printf("report rendering failed: %v", err)
	} else {
		log.Printf("wrote backscatter report %s", path)
	}
	if len(firstComponents) > 0 {
		if path, err := backscatter.PlotComponents(firstComponents, reportDir, reportLabel); err != nil {
			log.Printf("component plot failed: %v", err)
		} else {
			log.Printf("wrote component plot %s", path)
		}
	}

	return writeJSON(*outputPath, backscatterOutput{
		Corrected:  toJSONGrid(corrected),
		AVGApplied: toJSONGrid(applied),
	})
}

// sliceFamilyParams restricts the per-ping parameter grids of a family
// block to the chunk's range; scalar families pass through unchanged.
func sliceFamilyParams(params any, r chunk.Range) (any, error) {
	switch p := params.(type) {
	case backscatter.Reson7kParams:
		return p, nil
	case backscatter.KongsbergAllParams:
		p.NearNormalCorrector = p.NearNormalCorrector[r.Start:r.End]
		p.PulseLength = p.PulseLength[r.Start:r.End]
		return p, nil
	case backscatter.KongsbergKmallParams:
		p.PulseLength = p.PulseLength[r.Start:r.End]
		p.TVG = p.TVG[r.Start:r.End]
		p.FixedGain = p.FixedGain[r.Start:r.End]
		return p, nil
	}
	return nil, fmt.Errorf("unsupported parameter block %T", params)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

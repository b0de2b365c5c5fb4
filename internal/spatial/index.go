// Package spatial indexes georeferenced soundings for polygon selection.
// Queries run in two passes: the polygon's geohash cover prunes whole cells
// up front, then an R-tree narrows the survivors to the exact region before
// the point-in-polygon test.
package spatial

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/hydroline-data/swathproc/internal/geohash"
	"github.com/hydroline-data/swathproc/internal/georef"
)

// Sounding is one indexed georeferenced sounding. Coordinates are
// geographic (longitude, latitude) regardless of the run's output system,
// because the geohash prefilter works in geographic cells.
type Sounding struct {
	Lon, Lat float64
	Depth    float64
	// TimeIdx and BeamIdx locate the sounding in its source batch.
	TimeIdx int
	BeamIdx int
	// Cell is the geohash code the sounding was tagged with.
	Cell string
}

// Bounds implements rtreego.Spatial. A sounding is a degenerate rectangle
// at its position; rtreego requires positive extents, so a hair of width
// is added well below coordinate rounding.
func (s Sounding) Bounds() rtreego.Rect {
	point := rtreego.Point{s.Lon, s.Lat}
	rect, _ := rtreego.NewRect(point, []float64{1e-9, 1e-9})
	return rect
}

// Index holds soundings in an R-tree with a per-geohash-cell census for
// the prefilter.
type Index struct {
	rtree *rtreego.Rtree
	cells map[string]int
	count int
}

// NewIndex creates an empty index. Tree parameters follow the usual 2D
// R-tree tuning (min 25, max 50 children per node).
func NewIndex() *Index {
	return &Index{
		rtree: rtreego.NewTree(2, 25, 50),
		cells: make(map[string]int),
	}
}

// InsertResult indexes every resolved sounding of a georeferenced chunk.
// timeOffset rebases the chunk's row indexes onto the full batch. The
// chunk must come from a geographic-output run; soundings without a
// position are skipped.
func (idx *Index) InsertResult(res *georef.Result, timeOffset int) {
	for i := range res.X {
		for j := range res.X[i] {
			lon, lat := res.X[i][j], res.Y[i][j]
			if math.IsNaN(lon) || math.IsNaN(lat) {
				continue
			}
			idx.Insert(Sounding{
				Lon:     lon,
				Lat:     lat,
				Depth:   res.Depth[i][j],
				TimeIdx: timeOffset + i,
				BeamIdx: j,
				Cell:    res.Geohash[i][j],
			})
		}
	}
}

// Insert adds one sounding.
func (idx *Index) Insert(s Sounding) {
	idx.rtree.Insert(s)
	if !geohash.IsBlank(s.Cell) {
		idx.cells[s.Cell]++
	}
	idx.count++
}

// Count reports the number of indexed soundings.
func (idx *Index) Count() int { return idx.count }

// QueryPolygon returns the soundings inside the polygon. The polygon's
// geohash cover is computed at precision matching the indexed cells; when
// no indexed cell touches the cover the query answers without visiting the
// tree at all.
func (idx *Index) QueryPolygon(poly geohash.Polygon, precision int) ([]Sounding, error) {
	inside, intersecting, err := geohash.CellsCovering(poly, precision)
	if err != nil {
		return nil, err
	}

	populated := false
	member := make(map[string]bool, len(inside)+len(intersecting))
	for _, c := range inside {
		member[c] = true
		if idx.cells[c] > 0 {
			populated = true
		}
	}
	for _, c := range intersecting {
		member[c] = false
		if idx.cells[c] > 0 {
			populated = true
		}
	}
	if !populated {
		return nil, nil
	}

	minLat, minLon, maxLat, maxLon := poly.Envelope()
	query, _ := rtreego.NewRect(rtreego.Point{minLon, minLat},
		[]float64{maxLon - minLon, maxLat - minLat})

	var out []Sounding
	for _, spatial := range idx.rtree.SearchIntersect(query) {
		s := spatial.(Sounding)
		if fullyInside, ok := member[s.Cell]; ok && fullyInside {
			// Whole cell is inside the polygon; no point test needed.
			out = append(out, s)
			continue
		}
		if poly.Contains(geohash.Point{Lon: s.Lon, Lat: s.Lat}) {
			out = append(out, s)
		}
	}
	return out, nil
}

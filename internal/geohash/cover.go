package geohash

import (
	"fmt"
	"math"
)

// Point is a geographic coordinate used by the polygon covering.
type Point struct {
	Lat float64
	Lon float64
}

// Polygon is a closed ring of geographic coordinates. The first and last
// vertices need not repeat; the ring is closed implicitly.
type Polygon []Point

// Centroid returns the vertex-average centroid of the ring. For the BFS
// seed cell this only needs to land somewhere near the polygon, not at its
// exact center of mass.
func (p Polygon) Centroid() Point {
	var lat, lon float64
	for _, v := range p {
		lat += v.Lat
		lon += v.Lon
	}
	n := float64(len(p))
	return Point{Lat: lat / n, Lon: lon / n}
}

// Envelope returns the bounding box of the ring.
func (p Polygon) Envelope() (minLat, minLon, maxLat, maxLon float64) {
	minLat, minLon = math.Inf(1), math.Inf(1)
	maxLat, maxLon = math.Inf(-1), math.Inf(-1)
	for _, v := range p {
		minLat = math.Min(minLat, v.Lat)
		minLon = math.Min(minLon, v.Lon)
		maxLat = math.Max(maxLat, v.Lat)
		maxLon = math.Max(maxLon, v.Lon)
	}
	return
}

// Contains reports whether the point is inside the ring (ray casting).
// Points exactly on an edge may land on either side; cells touching the
// boundary are classified as intersecting by the covering, so the covering
// result does not depend on edge-case containment.
func (p Polygon) Contains(pt Point) bool {
	inside := false
	n := len(p)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := p[i], p[j]
		if (vi.Lat > pt.Lat) != (vj.Lat > pt.Lat) {
			crossLon := (vj.Lon-vi.Lon)*(pt.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lon
			if pt.Lon < crossLon {
				inside = !inside
			}
		}
	}
	return inside
}

// corners returns the four corners of a cell in ring order.
func (c Cell) corners() [4]Point {
	return [4]Point{
		{c.Lat - c.LatHalf, c.Lon - c.LonHalf},
		{c.Lat - c.LatHalf, c.Lon + c.LonHalf},
		{c.Lat + c.LatHalf, c.Lon + c.LonHalf},
		{c.Lat + c.LatHalf, c.Lon - c.LonHalf},
	}
}

// containsCell reports whether every corner of the cell lies inside the
// polygon and no polygon edge crosses the cell. Sufficient for the convex
// and mildly concave survey outlines this covering is used with.
func (p Polygon) containsCell(c Cell) bool {
	for _, corner := range c.corners() {
		if !p.Contains(corner) {
			return false
		}
	}
	return !p.edgeCrossesCell(c)
}

// intersectsCell reports whether the polygon and cell share any area: a
// cell corner inside the polygon, a polygon vertex inside the cell, or an
// edge crossing.
func (p Polygon) intersectsCell(c Cell) bool {
	for _, corner := range c.corners() {
		if p.Contains(corner) {
			return true
		}
	}
	for _, v := range p {
		if math.Abs(v.Lat-c.Lat) <= c.LatHalf && math.Abs(v.Lon-c.Lon) <= c.LonHalf {
			return true
		}
	}
	return p.edgeCrossesCell(c)
}

func (p Polygon) edgeCrossesCell(c Cell) bool {
	corners := c.corners()
	n := len(p)
	for i := 0; i < n; i++ {
		a, b := p[i], p[(i+1)%n]
		for j := 0; j < 4; j++ {
			if segmentsCross(a, b, corners[j], corners[(j+1)%4]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}

func orient(a, b, c Point) float64 {
	return (b.Lon-a.Lon)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lon-a.Lon)
}

// envelopeIntersects reports whether the cell overlaps the polygon's
// bounding box. Cells outside the envelope bound the breadth-first search.
func envelopeIntersects(minLat, minLon, maxLat, maxLon float64, c Cell) bool {
	return c.Lat-c.LatHalf <= maxLat && c.Lat+c.LatHalf >= minLat &&
		c.Lon-c.LonHalf <= maxLon && c.Lon+c.LonHalf >= minLon
}

// CellsCovering walks outward from the polygon centroid's cell through cell
// adjacency, classifying every visited cell as fully inside the polygon,
// intersecting its boundary, or outside (outside cells bound the walk but
// are not returned). The returned sets are mutually exclusive and each cell
// is visited at most once. The walk is an explicit frontier queue, bounded
// by the polygon envelope; no recursion.
func CellsCovering(polygon Polygon, precision int) (inside, intersecting []string, err error) {
	if len(polygon) < 3 {
		return nil, nil, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(polygon))
	}
	minLat, minLon, maxLat, maxLon := polygon.Envelope()
	centroid := polygon.Centroid()

	seed := Encode(centroid.Lat, centroid.Lon, precision)
	frontier := []string{seed}
	visited := map[string]struct{}{}

	for len(frontier) > 0 {
		code := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[code]; seen {
			continue
		}
		visited[code] = struct{}{}

		cell, derr := DecodeCell(code)
		if derr != nil {
			return nil, nil, derr
		}
		if !envelopeIntersects(minLat, minLon, maxLat, maxLon, cell) {
			continue
		}
		switch {
		case polygon.containsCell(cell):
			inside = append(inside, code)
		case polygon.intersectsCell(cell):
			intersecting = append(intersecting, code)
		}

		neighbors, nerr := Neighbors(code)
		if nerr != nil {
			return nil, nil, nerr
		}
		for _, nb := range neighbors {
			if _, seen := visited[nb]; !seen {
				frontier = append(frontier, nb)
			}
		}
	}
	return inside, intersecting, nil
}

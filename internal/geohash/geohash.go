// Package geohash implements the base-32 geohash codec used to spatially
// index soundings, plus a breadth-first polygon covering that classifies
// cells as fully inside or intersecting a query polygon.
//
// A blank code (space-filled, length = precision) means "undefined": it is
// the encoding of a sounding whose position could not be resolved, and is
// never a valid cell.
package geohash

import (
	"fmt"
	"math"
	"strings"
)

// base32 alphabet for geohash codes. Note this is not RFC 4648 base32;
// the geohash alphabet omits a, i, l and o.
const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// DefaultPrecision is the code length used for sounding spatial tagging.
const DefaultPrecision = 7

var decodeMap [256]int8

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = int8(i)
	}
}

// Blank returns the undefined-position code of the given length.
func Blank(precision int) string {
	return strings.Repeat(" ", precision)
}

// IsBlank reports whether code is an undefined-position marker.
func IsBlank(code string) bool {
	return strings.TrimSpace(code) == ""
}

// Encode returns the geohash of the given position at the given precision.
// NaN coordinates encode to a blank code of the requested length rather
// than failing, so a whole chunk never aborts on one bad sounding.
func Encode(lat, lon float64, precision int) string {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Blank(precision)
	}
	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)
	evenBit := true // longitude first
	ch, bit := 0, 0
	for sb.Len() < precision {
		if evenBit {
			mid := (lonMin + lonMax) / 2
			if lon >= mid {
				ch = ch<<1 | 1
				lonMin = mid
			} else {
				ch <<= 1
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				ch = ch<<1 | 1
				latMin = mid
			} else {
				ch <<= 1
				latMax = mid
			}
		}
		evenBit = !evenBit
		bit++
		if bit == 5 {
			sb.WriteByte(alphabet[ch])
			ch, bit = 0, 0
		}
	}
	return sb.String()
}

// Cell is the decoded extent of a geohash code: centroid plus half-extents.
type Cell struct {
	Lat     float64
	Lon     float64
	LatHalf float64
	LonHalf float64
}

// DecodeCell decodes a geohash into its cell centroid and half-extents.
// Decoding is deterministic: the same code always yields the same cell.
func DecodeCell(code string) (Cell, error) {
	if IsBlank(code) {
		return Cell{}, fmt.Errorf("cannot decode blank geohash %q", code)
	}
	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0
	evenBit := true
	for i := 0; i < len(code); i++ {
		d := decodeMap[code[i]]
		if d < 0 {
			return Cell{}, fmt.Errorf("invalid geohash character %q in %q", code[i], code)
		}
		for b := 4; b >= 0; b-- {
			set := d>>uint(b)&1 == 1
			if evenBit {
				mid := (lonMin + lonMax) / 2
				if set {
					lonMin = mid
				} else {
					lonMax = mid
				}
			} else {
				mid := (latMin + latMax) / 2
				if set {
					latMin = mid
				} else {
					latMax = mid
				}
			}
			evenBit = !evenBit
		}
	}
	return Cell{
		Lat:     (latMin + latMax) / 2,
		Lon:     (lonMin + lonMax) / 2,
		LatHalf: (latMax - latMin) / 2,
		LonHalf: (lonMax - lonMin) / 2,
	}, nil
}

// Decode returns the centroid of the geohash cell.
func Decode(code string) (lat, lon float64, err error) {
	c, err := DecodeCell(code)
	if err != nil {
		return 0, 0, err
	}
	return c.Lat, c.Lon, nil
}

// Neighbors returns the up-to-eight adjacent cells of code at the same
// precision, computed by offsetting the centroid by one cell extent and
// re-encoding. Neighbors across the poles are omitted; longitude wraps.
func Neighbors(code string) ([]string, error) {
	c, err := DecodeCell(code)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, 8)
	for _, dlat := range []float64{-1, 0, 1} {
		for _, dlon := range []float64{-1, 0, 1} {
			if dlat == 0 && dlon == 0 {
				continue
			}
			lat := c.Lat + dlat*2*c.LatHalf
			if lat <= -90 || lat >= 90 {
				continue
			}
			lon := c.Lon + dlon*2*c.LonHalf
			if lon < -180 {
				lon += 360
			} else if lon >= 180 {
				lon -= 360
			}
			out = append(out, Encode(lat, lon, len(code)))
		}
	}
	return out, nil
}

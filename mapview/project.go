package mapview

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/project"
)

const (
	// mercatorMax is the Web Mercator half-width in metres.
	mercatorMax = 20037508.342789244
	// maxLat keeps the Mercator square bounded.
	maxLat = 85.05112878
	// arcPoints is the number of segments per great-circle route.
	arcPoints = 100
)

// projection maps lon/lat onto a target of a given size with Web Mercator,
// scaled uniformly and centred.
type projection struct {
	size   image.Point
	scale  float64
	offset orb.Point
}

func newProjection(size image.Point) projection {
	side := math.Min(float64(size.X), float64(size.Y))
	return projection{
		size:  size,
		scale: side / (2 * mercatorMax),
		offset: orb.Point{
			(float64(size.X) - side) / 2,
			(float64(size.Y) - side) / 2,
		},
	}
}

func mercator(ll orb.Point) orb.Point {
	lat := math.Max(-maxLat, math.Min(maxLat, ll.Lat()))
	return project.Point(orb.Point{ll.Lon(), lat}, project.WGS84.ToMercator)
}

// screen projects ll into target pixels, y growing downwards.
func (p projection) screen(ll orb.Point) orb.Point {
	m := mercator(ll)
	return orb.Point{
		p.offset[0] + (m[0]+mercatorMax)*p.scale,
		p.offset[1] + (mercatorMax-m[1])*p.scale,
	}
}

// geometry returns a projected copy of g. g itself is left untouched, as it
// belongs to the shared dataset.
func (p projection) geometry(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), p.screen)
}

func toImage(p orb.Point) image.Point {
	return image.Pt(int(math.Round(p[0])), int(math.Round(p[1])))
}

func normLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// greatCircle interpolates the shortest path between from and to. The path is
// split where it crosses the antimeridian.
func greatCircle(from, to orb.Point) orb.MultiLineString {
	d := geo.Distance(from, to)
	bearing := geo.Bearing(from, to)
	var out orb.MultiLineString
	cur := orb.LineString{from}
	prev := from
	for i := 1; i <= arcPoints; i++ {
		p := to
		if i < arcPoints {
			p = geo.PointAtBearingAndDistance(from, bearing, d*float64(i)/arcPoints)
			p[0] = normLon(p[0])
		}
		if math.Abs(p.Lon()-prev.Lon()) > 180 {
			if len(cur) > 1 {
				out = append(out, cur)
			}
			cur = orb.LineString{}
		}
		cur = append(cur, p)
		prev = p
	}
	if len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}

// rings flattens polygonal geometry into its rings. Other geometry kinds have
// no rings.
func rings(g orb.Geometry) []orb.Ring {
	switch g := g.(type) {
	case orb.Polygon:
		return g
	case orb.MultiPolygon:
		var rs []orb.Ring
		for _, p := range g {
			rs = append(rs, p...)
		}
		return rs
	case orb.Collection:
		var rs []orb.Ring
		for _, sub := range g {
			rs = append(rs, rings(sub)...)
		}
		return rs
	default:
		return nil
	}
}

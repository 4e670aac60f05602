// Package dataset loads the immutable entity and route collections that views
// render.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidDocument = errors.New("dataset: invalid document")

// Entity is one country feature.
type Entity struct {
	// ID is the ISO 3166-1 alpha-3 code. It is not guaranteed unique; Natural
	// Earth uses "-99" for several disputed areas.
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	ISOA2      string       `json:"iso-a2"`
	Population int64        `json:"population"`
	Geometry   orb.Geometry `json:"-"`
}

// Coord is a coordinate exactly as written in the source document.
// The JSON form may be a string or a number; either way the literal text is
// kept so route identifiers follow the source formatting.
type Coord string

func (c *Coord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coord(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("coordinate %s: %w", data, err)
	}
	*c = Coord(n)
	return nil
}

func (c Coord) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(c)), 64)
}

// Route is one flight route between two coordinate pairs.
type Route struct {
	Carrier string `json:"airlineIata"`
	Lat1    Coord  `json:"lat1"`
	Lon1    Coord  `json:"lon1"`
	Lat2    Coord  `json:"lat2"`
	Lon2    Coord  `json:"lon2"`
	Base    string `json:"base"`
	Ref     string `json:"ref"`
}

// ID is the selection identifier: carrier and the four coordinates as literal
// text, joined by "-". "1.0" and "1" give different ids.
func (r Route) ID() string {
	return strings.Join([]string{r.Carrier, string(r.Lat1), string(r.Lon1), string(r.Lat2), string(r.Lon2)}, "-")
}

// Key is ID with the coordinates normalised numerically. It falls back to ID
// when a coordinate does not parse.
func (r Route) Key() string {
	from, to, ok := r.Endpoints()
	if !ok {
		return r.ID()
	}
	return fmt.Sprintf("%s-%g-%g-%g-%g", r.Carrier, from.Lat(), from.Lon(), to.Lat(), to.Lon())
}

// Endpoints parses the coordinates into lon/lat points.
func (r Route) Endpoints() (from, to orb.Point, ok bool) {
	var v [4]float64
	for i, c := range []Coord{r.Lat1, r.Lon1, r.Lat2, r.Lon2} {
		f, err := c.Float()
		if err != nil {
			return orb.Point{}, orb.Point{}, false
		}
		v[i] = f
	}
	return orb.Point{v[1], v[0]}, orb.Point{v[3], v[2]}, true
}

// Dataset is shared read-only by every view of a session.
type Dataset struct {
	Entities []Entity
	Routes   []Route
}

// Entity returns the first entity with the given id.
func (d *Dataset) Entity(id string) (Entity, bool) {
	if d == nil {
		return Entity{}, false
	}
	for _, e := range d.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// ParseCountries reads a GeoJSON FeatureCollection with Natural Earth
// properties.
func ParseCountries(data []byte) ([]Entity, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: countries: %s", ErrInvalidDocument, err)
	}
	entities := make([]Entity, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("%w: countries: feature %d has no geometry", ErrInvalidDocument, i)
		}
		entities = append(entities, Entity{
			ID:         f.Properties.MustString("ISO_A3", ""),
			Name:       f.Properties.MustString("SOVEREIGNT", ""),
			ISOA2:      f.Properties.MustString("ISO_A2", ""),
			Population: int64(f.Properties.MustFloat64("POP_EST", 0)),
			Geometry:   f.Geometry,
		})
	}
	return entities, nil
}

// ParseFlights reads a JSON array of route records.
func ParseFlights(data []byte) ([]Route, error) {
	var routes []Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("%w: flights: %s", ErrInvalidDocument, err)
	}
	return routes, nil
}

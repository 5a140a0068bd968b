package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// Region is one named polygon from the reference source, normalized to
// geographic (lon/lat degree) coordinates.
type Region struct {
	Name     string
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
}

// Reference is the loaded, CRS-normalized polygon set.
type Reference struct {
	Path          string
	NameAttribute string
	Regions       []Region
	Skipped       int // features without a usable name or polygonal geometry
}

// legacy top-level "crs" member; RFC 7946 dropped it but borough boundary
// exports still carry it
type crsMember struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// LoadReference reads a GeoJSON feature collection, validates and
// normalizes its CRS to geographic lon/lat, and selects the region-name
// attribute by probing attrCandidates in order.
func LoadReference(path string, attrCandidates []string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "cannot read source", Err: err}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "cannot parse GeoJSON", Err: err}
	}

	var meta crsMember
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &LoadError{Path: path, Reason: "cannot parse GeoJSON", Err: err}
	}
	crsName := ""
	if meta.CRS != nil {
		crsName = meta.CRS.Properties.Name
	}

	reproject, err := crsProjection(path, crsName)
	if err != nil {
		return nil, err
	}

	attr, available := selectNameAttribute(fc, attrCandidates)
	if attr == "" {
		return nil, &SchemaError{Path: path, Candidates: attrCandidates, Available: available}
	}

	ref := &Reference{Path: path, NameAttribute: attr}
	for _, f := range fc.Features {
		name := featureName(f, attr)
		geom := f.Geometry
		switch geom.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			ref.Skipped++
			continue
		}
		if name == "" {
			ref.Skipped++
			continue
		}
		if reproject != nil {
			geom = project.Geometry(geom, reproject)
		}
		ref.Regions = append(ref.Regions, Region{Name: name, Geometry: geom})
	}

	if len(ref.Regions) == 0 {
		return nil, &LoadError{Path: path, Reason: "no usable polygon features"}
	}

	return ref, nil
}

// crsProjection validates the declared CRS. Geographic variants need no
// conversion; Web Mercator is reprojected; anything else is rejected
// rather than silently trusted.
func crsProjection(path, name string) (orb.Projection, error) {
	code := name
	if i := strings.LastIndexAny(code, ":"); i >= 0 {
		code = code[i+1:]
	}
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "CRS84", "4326", "WGS84":
		return nil, nil
	case "3857", "900913":
		return project.Mercator.ToWGS84, nil
	default:
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unsupported CRS %q: reproject the file to EPSG:4326", name)}
	}
}

// selectNameAttribute probes the candidate list, case-sensitive, against
// the union of property keys across all features. Returns the first hit
// and the sorted key set for diagnostics.
func selectNameAttribute(fc *geojson.FeatureCollection, candidates []string) (string, []string) {
	keys := make(map[string]bool)
	for _, f := range fc.Features {
		for k := range f.Properties {
			keys[k] = true
		}
	}

	available := make([]string, 0, len(keys))
	for k := range keys {
		available = append(available, k)
	}
	sort.Strings(available)

	for _, c := range candidates {
		if keys[c] {
			return c, available
		}
	}
	return "", available
}

func featureName(f *geojson.Feature, attr string) string {
	v, ok := f.Properties[attr]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

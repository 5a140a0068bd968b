package geo

import (
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

// Point is a candidate record's location keyed by its warehouse id.
type Point struct {
	ID  string
	Lat float64
	Lon float64
}

// Match pairs a candidate id with the name of a region containing it.
// A point inside overlapping regions yields one Match per region;
// collapsing those is the conflict resolver's job, not the matcher's.
type Match struct {
	ID     string
	Region string
}

// Matcher answers point-in-polygon queries against a loaded Reference.
// Polygon bounding boxes are indexed in an R-tree so lookups avoid a
// full scan of the polygon set; results are identical to exhaustive
// testing.
type Matcher struct {
	tree    rtree.RTreeG[*Region]
	workers int
}

// NewMatcher indexes the reference polygons. workers bounds the internal
// parallelism of Match; values below 1 mean single-threaded.
func NewMatcher(ref *Reference, workers int) *Matcher {
	m := &Matcher{workers: workers}
	if m.workers < 1 {
		m.workers = 1
	}
	for i := range ref.Regions {
		r := &ref.Regions[i]
		b := r.Geometry.Bound()
		m.tree.Insert(
			[2]float64{b.Min[0], b.Min[1]},
			[2]float64{b.Max[0], b.Max[1]},
			r,
		)
	}
	return m
}

// Locate returns the names of every region containing the point, boundary
// inclusive, in sorted order.
func (m *Matcher) Locate(lon, lat float64) []string {
	pt := orb.Point{lon, lat}
	var names []string
	m.tree.Search(
		[2]float64{lon, lat},
		[2]float64{lon, lat},
		func(_, _ [2]float64, r *Region) bool {
			if regionContains(r.Geometry, pt) {
				names = append(names, r.Name)
			}
			return true
		},
	)
	sort.Strings(names)
	return names
}

// Match tests every point against the indexed polygons. Points inside no
// region contribute nothing (left-join semantics). Containment is tested
// per point, so the candidate set is partitioned across workers; results
// are sorted by (ID, Region) so parallelism never changes the output.
func (m *Matcher) Match(points []Point) []Match {
	if len(points) == 0 {
		return nil
	}

	workers := m.workers
	if workers > len(points) {
		workers = len(points)
	}

	chunks := make([][]Match, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var local []Match
			for i := w; i < len(points); i += workers {
				p := points[i]
				for _, name := range m.Locate(p.Lon, p.Lat) {
					local = append(local, Match{ID: p.ID, Region: name})
				}
			}
			chunks[w] = local
		}(w)
	}
	wg.Wait()

	var matches []Match
	for _, c := range chunks {
		matches = append(matches, c...)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ID != matches[j].ID {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Region < matches[j].Region
	})
	return matches
}

// regionContains is the inclusive "within" predicate: strictly inside or
// on the polygon boundary.
func regionContains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt) || onPolygonBoundary(geom, pt)
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, pt) {
			return true
		}
		for _, poly := range geom {
			if onPolygonBoundary(poly, pt) {
				return true
			}
		}
	}
	return false
}

// boundaryEpsilon is in degrees; ~0.1mm at the equator, far below the
// precision of collision coordinates.
const boundaryEpsilon = 1e-9

func onPolygonBoundary(poly orb.Polygon, pt orb.Point) bool {
	for _, ring := range poly {
		for i := 1; i < len(ring); i++ {
			if onSegment(ring[i-1], ring[i], pt) {
				return true
			}
		}
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > boundaryEpsilon {
		return false
	}
	if p[0] < math.Min(a[0], b[0])-boundaryEpsilon || p[0] > math.Max(a[0], b[0])+boundaryEpsilon {
		return false
	}
	if p[1] < math.Min(a[1], b[1])-boundaryEpsilon || p[1] > math.Max(a[1], b[1])+boundaryEpsilon {
		return false
	}
	return true
}

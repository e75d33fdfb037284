// Package geo turns the locations collected on waitlist joins into a small
// set of map markers for organizers.  The output is display-only and never
// feeds back into allocation.
package geo

import (
    "math"
    "sort"

    "github.com/iliyamo/fairdraw/internal/model"
)

// DefaultResolution is two decimal places, roughly 1.1 km cells.
const DefaultResolution = 2

// MaxResolution bounds the resolution accepted from callers.
const MaxResolution = 6

// Snap returns the south-west corner of the cell containing v.  Cells are
// 10^-resolution degrees wide and every coordinate in [corner, corner+width)
// maps to the same corner, so nearby points never split across a rounding
// boundary inside one cell.
func Snap(v float64, resolution int) float64 {
    f := math.Pow(10, float64(resolution))
    x := v * f
    // A product within rounding error of a cell edge is on the edge, so
    // 0.29*100 = 28.999... lands in cell 29 while 1000.99999995 stays in 1000.
    if r := math.Round(x); math.Abs(x-r) <= 1e-12*math.Max(1, math.Abs(x)) {
        x = r
    }
    return math.Floor(x) / f
}

type cellKey struct{ lat, lng int64 }

// Aggregate groups locations into cells of the given resolution and counts
// entrants per cell.  Nil locations are skipped.  The result is ordered by
// count (descending), then latitude, then longitude.
func Aggregate(locations map[string]*model.Location, resolution int) []model.AreaStats {
    if resolution < 0 {
        resolution = 0
    }
    if resolution > MaxResolution {
        resolution = MaxResolution
    }
    f := math.Pow(10, float64(resolution))

    cells := make(map[cellKey]*model.AreaStats)
    for _, loc := range locations {
        if loc == nil {
            continue
        }
        lat, lng := Snap(loc.Lat, resolution), Snap(loc.Lng, resolution)
        k := cellKey{lat: int64(math.Round(lat * f)), lng: int64(math.Round(lng * f))}
        st, ok := cells[k]
        if !ok {
            st = &model.AreaStats{Lat: lat, Lng: lng}
            cells[k] = st
        }
        st.Count++
    }

    out := make([]model.AreaStats, 0, len(cells))
    for _, st := range cells {
        out = append(out, *st)
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Count != out[j].Count {
            return out[i].Count > out[j].Count
        }
        if out[i].Lat != out[j].Lat {
            return out[i].Lat < out[j].Lat
        }
        return out[i].Lng < out[j].Lng
    })
    return out
}

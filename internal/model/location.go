package model

import "errors"

// ErrInvalidLocation is returned for coordinates outside the WGS84 range.
var ErrInvalidLocation = errors.New("invalid coordinates")

// Location is the approximate position an entrant shared when joining a
// waiting list.  Only events with geolocation enabled collect it.
type Location struct {
    Lat float64 `json:"lat"`
    Lng float64 `json:"lng"`
}

// Validate checks that lat is within [-90, 90] and lng within [-180, 180].
func (l Location) Validate() error {
    if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
        return ErrInvalidLocation
    }
    return nil
}

// AreaStats is one map marker: a bucketed coordinate and the number of
// waiting entrants whose location fell into that bucket.
type AreaStats struct {
    Lat   float64 `json:"lat"`
    Lng   float64 `json:"lng"`
    Count int     `json:"count"`
}

// shared/models/center.go
package models

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Valid reports whether the coordinate lies in the usual latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// EvacuationCenter is a capacity-bounded shelter.
type EvacuationCenter struct {
	ID               string     `bson:"_id" json:"id"`
	Name             string     `bson:"name" json:"name"`
	Location         Coordinate `bson:"location" json:"location"`
	Capacity         int        `bson:"capacity" json:"capacity"`
	CurrentOccupancy int        `bson:"current_occupancy" json:"currentOccupancy"`
	Facilities       []string   `bson:"facilities,omitempty" json:"facilities,omitempty"`
}

// Clone returns a copy that shares no slices with c.
func (c EvacuationCenter) Clone() EvacuationCenter {
	c.Facilities = append([]string(nil), c.Facilities...)
	return c
}

// NearbyCenter pairs a center with its great-circle distance from a query point.
type NearbyCenter struct {
	EvacuationCenter
	DistanceKm float64 `json:"distanceKm"`
}

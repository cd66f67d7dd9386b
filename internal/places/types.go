// Package places contains the point-of-interest domain model shared by the
// resolver, the sync pipeline, the stores and the HTTP API.
package places

import "time"

const (
	// UnnamedPlace is stored when the source returns no display name
	UnnamedPlace = "Unnamed Place"

	// NoAddress is stored when the source returns no formatted address
	NoAddress = "No Address"
)

// Point is a WGS84 coordinate pair
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OpeningHours holds the regular opening hours of a place
type OpeningHours struct {
	OpenNow             *bool    `json:"openNow,omitempty"`
	WeekdayDescriptions []string `json:"weekdayDescriptions,omitempty"`
}

// Record is the persisted representation of a place. ID is the upstream
// place identifier and the only key used for upserts.
type Record struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	Type         string        `json:"type,omitempty"`
	Location     *Point        `json:"location,omitempty"`
	OpeningHours *OpeningHours `json:"openingHours,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// DisplayName is a localized place name
type DisplayName struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// LatLng is the coordinate shape used by the places API
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Circle is a search area
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LocationBias biases a text search towards an area
type LocationBias struct {
	Circle Circle `json:"circle"`
}

// NearbyPlace is a lightweight stub returned by nearby searches
type NearbyPlace struct {
	ID          string       `json:"id"`
	DisplayName *DisplayName `json:"displayName,omitempty"`
	Location    *LatLng      `json:"location,omitempty"`
}

// SearchNearbyResponse is the result of a nearby search
type SearchNearbyResponse struct {
	Places []NearbyPlace `json:"places"`
}

// TextSearchPlace is a single text search hit
type TextSearchPlace struct {
	ID               string       `json:"id"`
	DisplayName      *DisplayName `json:"displayName,omitempty"`
	FormattedAddress string       `json:"formattedAddress,omitempty"`
	Location         *LatLng      `json:"location,omitempty"`
}

// SearchTextResponse is the result of a text search
type SearchTextResponse struct {
	Places []TextSearchPlace `json:"places"`
}

// PlaceDetails is the full detail view of a place
type PlaceDetails struct {
	ID               string        `json:"id"`
	DisplayName      *DisplayName  `json:"displayName,omitempty"`
	FormattedAddress string        `json:"formattedAddress,omitempty"`
	OpeningHours     *OpeningHours `json:"regularOpeningHours,omitempty"`
	Location         *LatLng       `json:"location,omitempty"`
}

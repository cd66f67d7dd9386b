package places

func displayText(d *DisplayName) string {
	if d == nil {
		return ""
	}
	return d.Text
}

func toPoint(l *LatLng) *Point {
	if l == nil {
		return nil
	}
	return &Point{Lat: l.Latitude, Lng: l.Longitude}
}

func toLatLng(p *Point) *LatLng {
	if p == nil {
		return nil
	}
	return &LatLng{Latitude: p.Lat, Longitude: p.Lng}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ToRecord converts a nearby stub into a record of the given type. Stubs carry
// no address, so the placeholder is stored until details are synced.
func (p NearbyPlace) ToRecord(placeType string) Record {
	return Record{
		ID:       p.ID,
		Name:     orDefault(displayText(p.DisplayName), UnnamedPlace),
		Address:  NoAddress,
		Type:     placeType,
		Location: toPoint(p.Location),
	}
}

// ToRecord converts a text search hit into a record without a type
func (p TextSearchPlace) ToRecord() Record {
	return Record{
		ID:       p.ID,
		Name:     orDefault(displayText(p.DisplayName), UnnamedPlace),
		Address:  orDefault(p.FormattedAddress, NoAddress),
		Location: toPoint(p.Location),
	}
}

// ToRecord converts full details into a record of the given type
func (d PlaceDetails) ToRecord(placeType string) Record {
	return Record{
		ID:           d.ID,
		Name:         orDefault(displayText(d.DisplayName), UnnamedPlace),
		Address:      orDefault(d.FormattedAddress, NoAddress),
		Type:         placeType,
		Location:     toPoint(d.Location),
		OpeningHours: d.OpeningHours,
	}
}

// ToNearbyPlace renders a stored record in the nearby search shape
func (r Record) ToNearbyPlace(languageCode string) NearbyPlace {
	return NearbyPlace{
		ID:          r.ID,
		DisplayName: &DisplayName{Text: r.Name, LanguageCode: languageCode},
		Location:    toLatLng(r.Location),
	}
}

// ToDetails renders a stored record in the details shape
func (r Record) ToDetails(languageCode string) PlaceDetails {
	return PlaceDetails{
		ID:               r.ID,
		DisplayName:      &DisplayName{Text: r.Name, LanguageCode: languageCode},
		FormattedAddress: r.Address,
		OpeningHours:     r.OpeningHours,
		Location:         toLatLng(r.Location),
	}
}

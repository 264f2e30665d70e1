// GPS position extraction from node state documents.
//
// BreadCrumb nodes with a GPS module report their position as NMEA-style
// coordinate strings: latitude "ddmm.mmmm" and longitude "dddmm.mmmm",
// each carrying a hemisphere suffix (N/S, E/W). Southern and western
// hemispheres decode to negative decimal degrees.
package go_bcapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// State document paths published by the GPS module.
const (
	gpsEnabledPath   = "gps.enabled"
	gpsLatitudePath  = "gps.latitude"
	gpsLongitudePath = "gps.longitude"
)

// GPSPosition is a decoded node position in decimal degrees.
type GPSPosition struct {
	Enabled   bool
	Latitude  float64
	Longitude float64
}

// GPSFix extracts the node position from a state document. A node whose
// GPS module is disabled or absent yields a zero position with Enabled
// false, which is not an error; malformed coordinate strings are.
func GPSFix(doc *StateDocument) (*GPSPosition, error) {
	if doc == nil {
		return nil, ErrInvalidArgument
	}

	enabled, err := doc.GetBool(gpsEnabledPath)
	if err != nil {
		if errors.Is(err, ErrFieldNotFound) {
			return &GPSPosition{}, nil
		}
		return nil, err
	}
	if !enabled {
		return &GPSPosition{}, nil
	}

	latStr, err := doc.GetString(gpsLatitudePath)
	if err != nil {
		return nil, err
	}
	lonStr, err := doc.GetString(gpsLongitudePath)
	if err != nil {
		return nil, err
	}

	lat, err := parseCoordinate(latStr, 2, "N", "S")
	if err != nil {
		return nil, fmt.Errorf("bcapi: parsing latitude %q: %w", latStr, err)
	}
	lon, err := parseCoordinate(lonStr, 3, "E", "W")
	if err != nil {
		return nil, fmt.Errorf("bcapi: parsing longitude %q: %w", lonStr, err)
	}

	return &GPSPosition{Enabled: true, Latitude: lat, Longitude: lon}, nil
}

// parseCoordinate converts one NMEA coordinate string into decimal
// degrees. degDigits is 2 for latitude and 3 for longitude; positive and
// negative name the hemisphere letters for each sign.
func parseCoordinate(value string, degDigits int, positive, negative string) (float64, error) {
	value = strings.TrimSpace(value)
	if len(value) < degDigits+2 {
		return 0, fmt.Errorf("coordinate too short")
	}

	sign := 1.0
	switch suffix := value[len(value)-1:]; suffix {
	case positive:
	case negative:
		sign = -1
	default:
		return 0, fmt.Errorf("unknown hemisphere suffix %q", suffix)
	}

	body := value[:len(value)-1]
	degrees, err := strconv.ParseFloat(body[:degDigits], 64)
	if err != nil {
		return 0, fmt.Errorf("bad degrees: %w", err)
	}
	minutes, err := strconv.ParseFloat(body[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("bad minutes: %w", err)
	}

	return sign * (degrees + minutes/60), nil
}

package core

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ValidationError represents a validation error for coordinates or other values
type ValidationError struct {
	Code     string
	Message  string
	Guidance string
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ValidationError{
			Code:     string(ErrInvalidLatitude),
			Message:  fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat),
			Guidance: "Ensure latitude is in decimal degrees",
		}
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return ValidationError{
			Code:     string(ErrInvalidLongitude),
			Message:  fmt.Sprintf("Longitude must be between -180 and 180, got %f", lng),
			Guidance: "Ensure longitude is in decimal degrees",
		}
	}
	return nil
}

// ParseCoordsQuery parses and validates latitude and longitude query values.
func ParseCoordsQuery(latStr, lngStr string) (float64, float64, error) {
	if strings.TrimSpace(latStr) == "" || strings.TrimSpace(lngStr) == "" {
		return 0, 0, ValidationError{
			Code:    string(ErrMissingParameter),
			Message: "Latitude and longitude are required",
		}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, ValidationError{
			Code:     string(ErrInvalidLatitude),
			Message:  fmt.Sprintf("Latitude %q is not a number", latStr),
			Guidance: "Ensure latitude is in decimal degrees",
		}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return 0, 0, ValidationError{
			Code:     string(ErrInvalidLongitude),
			Message:  fmt.Sprintf("Longitude %q is not a number", lngStr),
			Guidance: "Ensure longitude is in decimal degrees",
		}
	}
	if err := ValidateCoords(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// ParseCoords extracts and validates latitude and longitude from a CallToolRequest
func ParseCoords(req mcp.CallToolRequest, latKey, lngKey string) (float64, float64, error) {
	if latKey == "" {
		latKey = "latitude"
	}
	if lngKey == "" {
		lngKey = "longitude"
	}

	args := req.GetArguments()
	for _, key := range []string{latKey, lngKey} {
		if v, ok := args[key]; !ok || v == nil {
			return 0, 0, ValidationError{
				Code:    string(ErrMissingParameter),
				Message: fmt.Sprintf("missing required %s parameter", key),
			}
		}
	}

	lat := mcp.ParseFloat64(req, latKey, 0)
	lng := mcp.ParseFloat64(req, lngKey, 0)

	if err := ValidateCoords(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// ParseCoordsWithLog parses coordinates and logs any errors
func ParseCoordsWithLog(req mcp.CallToolRequest, logger *slog.Logger, latKey, lngKey string) (float64, float64, error) {
	lat, lng, err := ParseCoords(req, latKey, lngKey)
	if err != nil {
		logger.Error("invalid coordinates", "error", err)
	}
	return lat, lng, err
}

// ParseLatLngString reads a "lat,lng" pair such as the dashboard sends when
// the user picked a point on the map. ok is false for anything else.
func ParseLatLngString(s string) (lat, lng float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || ValidateCoords(lat, lng) != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// LeadingFloat parses the longest numeric prefix of s, so "12.5 km" is 12.5.
// Input without a numeric prefix yields 0.
func LeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case (c == '+' || c == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			i = len(s)
			continue
		}
		if seenDigit {
			if _, err := strconv.ParseFloat(s[:i+1], 64); err == nil {
				end = i + 1
			}
		}
	}
	if end == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(s[:end], 64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// LeadingInt is LeadingFloat truncated toward zero.
func LeadingInt(s string) int {
	return int(LeadingFloat(s))
}

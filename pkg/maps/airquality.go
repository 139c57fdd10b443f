package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

type airQualityRequest struct {
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// AirQuality looks up current conditions at a point and returns the
// provider's response unchanged.
func (c *Client) AirQuality(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	if err := core.ValidateCoords(lat, lng); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "maps.air_quality")
	defer span.End()

	var in airQualityRequest
	in.Location.Latitude = lat
	in.Location.Longitude = lng
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.opts.AirQualityURL, nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.opts.APIKey)

	body, err := c.do(ctx, tracing.ServiceAirQuality, "current_conditions", req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if !json.Valid(body) {
		return nil, core.NewError(core.ErrParseError, "invalid air quality response")
	}
	return body, nil
}

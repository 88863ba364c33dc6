package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// maxWeatherBody bounds the forecast response read.
const maxWeatherBody = 1 << 20

// WeatherTool returns the built-in current-weather tool. It queries the
// Open-Meteo forecast API for the given coordinates and returns the decoded
// response body.
func WeatherTool(client *http.Client) Tool {
	if client == nil {
		client = http.DefaultClient
	}
	return Tool{
		Descriptor: Descriptor{
			Name:        "get_weather",
			Description: "Get the current weather at a location",
			Parameters: map[string]Param{
				"latitude":  {Type: "number", Description: "Latitude of the location"},
				"longitude": {Type: "number", Description: "Longitude of the location"},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			lat, err := floatArg(args, "latitude")
			if err != nil {
				return nil, err
			}
			lon, err := floatArg(args, "longitude")
			if err != nil {
				return nil, err
			}
			url := fmt.Sprintf("%s?latitude=%v&longitude=%v&current=temperature_2m&hourly=temperature_2m&daily=sunrise,sunset&timezone=auto",
				openMeteoURL, lat, lon)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("build weather request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch weather: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("weather API returned %d", resp.StatusCode)
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherBody))
			if err != nil {
				return nil, fmt.Errorf("read weather response: %w", err)
			}
			var data map[string]any
			if err := json.Unmarshal(body, &data); err != nil {
				return nil, fmt.Errorf("decode weather response: %w", err)
			}
			return data, nil
		},
	}
}

func floatArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, v)
	}
}

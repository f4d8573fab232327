// Package envdata fetches live environmental conditions from the OpenWeather
// API for the live-data endpoint.
package envdata

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no API key is set. Live data is an
// optional capability; callers map this to a 503 rather than failing startup.
var ErrNotConfigured = errors.New("openweather api key not configured")

// aqiScale maps the OpenWeather 1-5 air quality index onto an approximate
// US AQI value so thresholds stay on one scale.
var aqiScale = map[int]float64{
	1: 25,
	2: 50,
	3: 100,
	4: 150,
	5: 200,
}

// cityCoord is a geographic lookup entry for supported cities.
type cityCoord struct {
	Lat float64
	Lon float64
}

var cityCoords = map[string]cityCoord{
	"delhi":     {28.6139, 77.2090},
	"mumbai":    {19.0760, 72.8777},
	"bangalore": {12.9716, 77.5946},
	"chennai":   {13.0827, 80.2707},
	"kolkata":   {22.5726, 88.3639},
}

// Conditions is the merged weather and air quality reading for one city.
type Conditions struct {
	City         string    `json:"city"`
	Temperature  float64   `json:"temperature"`
	Humidity     int       `json:"humidity"`
	Description  string    `json:"description"`
	PollutionAQI float64   `json:"pollution_aqi"`
	FetchedAt    time.Time `json:"fetched_at"`
}

type weatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type airPollutionResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
	} `json:"list"`
}

// Client calls the OpenWeather weather and air_pollution endpoints.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates an OpenWeather client. An empty apiKey is allowed; calls
// then fail with ErrNotConfigured.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Fetch returns current conditions for the named city. Unknown cities fall
// back to delhi so the endpoint stays usable with partial configuration.
func (c *Client) Fetch(city string) (*Conditions, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	coord, ok := cityCoords[city]
	if !ok {
		coord = cityCoords["delhi"]
		city = "delhi"
	}

	var weather weatherResponse
	resp, err := c.httpClient.R().
		SetQueryParams(map[string]string{
			"lat":   fmt.Sprintf("%f", coord.Lat),
			"lon":   fmt.Sprintf("%f", coord.Lon),
			"appid": c.apiKey,
			"units": "metric",
		}).
		SetResult(&weather).
		Get("/data/2.5/weather")
	if err != nil {
		return nil, fmt.Errorf("failed to call weather API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather API error: status %d", resp.StatusCode())
	}

	var pollution airPollutionResponse
	resp, err = c.httpClient.R().
		SetQueryParams(map[string]string{
			"lat":   fmt.Sprintf("%f", coord.Lat),
			"lon":   fmt.Sprintf("%f", coord.Lon),
			"appid": c.apiKey,
		}).
		SetResult(&pollution).
		Get("/data/2.5/air_pollution")
	if err != nil {
		return nil, fmt.Errorf("failed to call air pollution API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("air pollution API error: status %d", resp.StatusCode())
	}

	conditions := &Conditions{
		City:        city,
		Temperature: weather.Main.Temp,
		Humidity:    weather.Main.Humidity,
		FetchedAt:   time.Now().UTC(),
	}
	if len(weather.Weather) > 0 {
		conditions.Description = weather.Weather[0].Description
	}
	if len(pollution.List) > 0 {
		if aqi, ok := aqiScale[pollution.List[0].Main.AQI]; ok {
			conditions.PollutionAQI = aqi
		}
	}

	c.logger.Debug("Fetched environmental conditions",
		zap.String("city", city),
		zap.Float64("temperature", conditions.Temperature),
		zap.Float64("pollution_aqi", conditions.PollutionAQI),
	)
	return conditions, nil
}

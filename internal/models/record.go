// Package models holds the validated weather record and its projections.
package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/dmoreira/weathertool/internal/weathererr"
)

// Temperature sanity bounds in degrees Celsius. Observations outside this
// range are treated as upstream contract violations.
const (
	MinTemperature = -50.0
	MaxTemperature = 60.0
)

// Observation is the raw, unvalidated payload the transport decodes from the
// upstream response. Numeric fields are pointers so that absence is
// distinguishable from zero.
type Observation struct {
	City        string
	Country     string
	Description string
	Conditions  string
	Temp        *float64
	FeelsLike   *float64
	TempMin     *float64
	TempMax     *float64
	Humidity    *int
	WindSpeed   *float64
}

// Record is an immutable snapshot of one weather observation for one
// location. All fields are validated once, in NewRecord; every method after
// construction is a total function and never fails. Optional fields report a
// second ok result.
type Record struct {
	city        string
	country     string
	description string
	conditions  string
	temp        float64
	feelsLike   *float64
	tempMin     *float64
	tempMax     *float64
	humidity    *int
	windSpeed   *float64
	fetchedAt   time.Time
}

// NewRecord validates obs and builds a Record. City, temperature and
// description are required; temperature must fall within the sanity bounds
// and humidity, when present, within 0-100. Temperatures are rounded to one
// decimal. fetchedAt defaults to time.Now when zero.
func NewRecord(obs Observation, fetchedAt time.Time) (Record, error) {
	if obs.City == "" {
		return Record{}, &weathererr.ValidationError{Field: "name", Msg: "missing city name"}
	}
	if obs.Temp == nil {
		return Record{}, &weathererr.ValidationError{Field: "main.temp", Msg: "missing temperature"}
	}
	if *obs.Temp < MinTemperature || *obs.Temp > MaxTemperature {
		return Record{}, &weathererr.ValidationError{
			Field: "main.temp",
			Msg:   "temperature " + formatTemp(*obs.Temp) + " out of range",
		}
	}
	if obs.Description == "" {
		return Record{}, &weathererr.ValidationError{Field: "weather.description", Msg: "missing description"}
	}
	if obs.Humidity != nil && (*obs.Humidity < 0 || *obs.Humidity > 100) {
		return Record{}, &weathererr.ValidationError{
			Field: "main.humidity",
			Msg:   "humidity " + strconv.Itoa(*obs.Humidity) + " out of range",
		}
	}
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	r := Record{
		city:        obs.City,
		country:     obs.Country,
		description: obs.Description,
		conditions:  obs.Conditions,
		temp:        roundTemp(*obs.Temp),
		humidity:    copyInt(obs.Humidity),
		windSpeed:   copyFloat(obs.WindSpeed),
		fetchedAt:   fetchedAt,
	}
	if obs.FeelsLike != nil {
		r.feelsLike = roundTempPtr(*obs.FeelsLike)
	}
	if obs.TempMin != nil {
		r.tempMin = roundTempPtr(*obs.TempMin)
	}
	if obs.TempMax != nil {
		r.tempMax = roundTempPtr(*obs.TempMax)
	}
	return r, nil
}

// City returns the location name with its original casing preserved.
func (r Record) City() string { return r.city }

// Country returns the ISO country code, or "" when the upstream omitted it.
func (r Record) Country() string { return r.country }

// Temperature returns the current temperature in degrees Celsius.
func (r Record) Temperature() float64 { return r.temp }

// Description returns the human-readable conditions description.
func (r Record) Description() string { return r.description }

// Conditions returns the upstream conditions group (e.g. "Clear"), or "".
func (r Record) Conditions() string { return r.conditions }

// Humidity returns the relative humidity percentage when present.
func (r Record) Humidity() (int, bool) {
	if r.humidity == nil {
		return 0, false
	}
	return *r.humidity, true
}

// WindSpeed returns the wind speed when present.
func (r Record) WindSpeed() (float64, bool) {
	if r.windSpeed == nil {
		return 0, false
	}
	return *r.windSpeed, true
}

// FeelsLike returns the perceived temperature when present.
func (r Record) FeelsLike() (float64, bool) {
	if r.feelsLike == nil {
		return 0, false
	}
	return *r.feelsLike, true
}

// FetchedAt returns the time the observation was fetched from the upstream.
func (r Record) FetchedAt() time.Time { return r.fetchedAt }

// DisplayFormat returns the human-readable summary, e.g.
// "Rio de Janeiro: 28.5°C, clear sky".
func (r Record) DisplayFormat() string {
	return r.city + ": " + formatTemp(r.temp) + "°C, " + r.description
}

// AgentFormat returns the nested machine-consumable projection.
func (r Record) AgentFormat() map[string]any {
	temperature := map[string]any{"current": r.temp}
	if r.feelsLike != nil {
		temperature["feels_like"] = *r.feelsLike
	}
	if r.tempMin != nil {
		temperature["min"] = *r.tempMin
	}
	if r.tempMax != nil {
		temperature["max"] = *r.tempMax
	}

	conditions := map[string]any{"description": r.description}
	if r.conditions != "" {
		conditions["main"] = r.conditions
	}

	current := map[string]any{
		"temperature": temperature,
		"conditions":  conditions,
	}
	if r.humidity != nil {
		current["humidity"] = *r.humidity
	}
	if r.windSpeed != nil {
		current["wind_speed"] = *r.windSpeed
	}

	location := map[string]any{"city": r.city}
	if r.country != "" {
		location["country"] = r.country
	}

	return map[string]any{
		"location":        location,
		"current_weather": current,
		"timestamp":       r.fetchedAt.Format(time.RFC3339),
	}
}

// LegacyFormat returns the flat projection kept for older call sites.
func (r Record) LegacyFormat() map[string]any {
	out := map[string]any{
		"city":        r.city,
		"temperature": r.temp,
		"description": r.description,
	}
	if r.humidity != nil {
		out["humidity"] = *r.humidity
	}
	if r.windSpeed != nil {
		out["wind_speed"] = *r.windSpeed
	}
	return out
}

// recordJSON is the wire shape used by remote cache backends.
type recordJSON struct {
	City        string   `json:"city"`
	Country     string   `json:"country,omitempty"`
	Description string   `json:"description"`
	Conditions  string   `json:"conditions,omitempty"`
	Temp        *float64 `json:"temp"`
	FeelsLike   *float64 `json:"feels_like,omitempty"`
	TempMin     *float64 `json:"temp_min,omitempty"`
	TempMax     *float64 `json:"temp_max,omitempty"`
	Humidity    *int     `json:"humidity,omitempty"`
	WindSpeed   *float64 `json:"wind_speed,omitempty"`
	FetchedAt   string   `json:"fetched_at"`
}

// MarshalJSON implements json.Marshaler so records survive round-trips
// through remote cache backends without exposing mutable fields.
func (r Record) MarshalJSON() ([]byte, error) {
	t := r.temp
	return json.Marshal(recordJSON{
		City:        r.city,
		Country:     r.country,
		Description: r.description,
		Conditions:  r.conditions,
		Temp:        &t,
		FeelsLike:   r.feelsLike,
		TempMin:     r.tempMin,
		TempMax:     r.tempMax,
		Humidity:    r.humidity,
		WindSpeed:   r.windSpeed,
		FetchedAt:   r.fetchedAt.Format(time.RFC3339Nano),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Decoded records pass through the
// same validation as freshly fetched ones, so a corrupt cache payload fails
// loudly instead of producing an invalid record.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, raw.FetchedAt)
	if err != nil {
		return &weathererr.ValidationError{Field: "fetched_at", Msg: "bad timestamp"}
	}
	rec, err := NewRecord(Observation{
		City:        raw.City,
		Country:     raw.Country,
		Description: raw.Description,
		Conditions:  raw.Conditions,
		Temp:        raw.Temp,
		FeelsLike:   raw.FeelsLike,
		TempMin:     raw.TempMin,
		TempMax:     raw.TempMax,
		Humidity:    raw.Humidity,
		WindSpeed:   raw.WindSpeed,
	}, fetchedAt)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func roundTemp(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundTempPtr(v float64) *float64 {
	r := roundTemp(v)
	return &r
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

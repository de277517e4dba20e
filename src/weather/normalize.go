package weather

import (
	"encoding/json"
	"math"
)

// RawPayload holds the fields of an upstream current-weather response that
// the forecast is built from. Every field is optional: nil means the
// provider did not send it (or sent something unusable).
type RawPayload struct {
	Description *string
	Temperature *float64
	Humidity    *int
	Pressure    *int
	WindSpeed   *float64
	WindDeg     *int
}

// Forecast is the normalized payload returned to API clients. Absent values
// serialize as null so they stay distinguishable from a real zero.
type Forecast struct {
	Description   *string  `json:"prévisions"`
	Temperature   *float64 `json:"température"`
	Humidity      *int     `json:"humidité"`
	Pressure      *int     `json:"pression"`
	WindSpeed     *int     `json:"vitesse vents"`
	WindDirection *string  `json:"direction vents"`
}

// Normalize projects a raw upstream payload into a Forecast. The upstream
// HTTP status is returned untouched so provider failures reach the client
// as they are.
func Normalize(raw RawPayload, upstreamStatus int) (Forecast, int) {
	return Forecast{
		Description:   raw.Description,
		Temperature:   raw.Temperature,
		Humidity:      raw.Humidity,
		Pressure:      raw.Pressure,
		WindSpeed:     ConvertWindSpeed(raw.WindSpeed),
		WindDirection: ConvertWindDirection(raw.WindDeg),
	}, upstreamStatus
}

// DecodePayload extracts a RawPayload from an upstream response body.
//
// Each field is decoded on its own. A missing key, a value of the wrong JSON
// type or a body that is not JSON at all leaves the affected fields nil
// instead of failing the whole decode.
func DecodePayload(body []byte) RawPayload {
	var raw RawPayload

	root := objectOf(body)
	if root == nil {
		return raw
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(root["weather"], &entries); err == nil && len(entries) > 0 {
		raw.Description = stringField(objectOf(entries[0]), "description")
	}

	main := objectOf(root["main"])
	raw.Temperature = floatField(main, "temp")
	raw.Humidity = intField(main, "humidity")
	raw.Pressure = intField(main, "pressure")

	wind := objectOf(root["wind"])
	raw.WindSpeed = floatField(wind, "speed")
	raw.WindDeg = intField(wind, "deg")

	return raw
}

// objectOf decodes data as a JSON object, or returns nil.
func objectOf(data json.RawMessage) map[string]json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}

func stringField(obj map[string]json.RawMessage, key string) *string {
	data, ok := obj[key]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return s
}

func floatField(obj map[string]json.RawMessage, key string) *float64 {
	data, ok := obj[key]
	if !ok {
		return nil
	}
	var f *float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	return f
}

// intField accepts any JSON number and truncates a fractional value toward
// zero, the same way the provider's integer fields are read elsewhere.
func intField(obj map[string]json.RawMessage, key string) *int {
	f := floatField(obj, key)
	if f == nil || math.IsInf(*f, 0) || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	i := int(*f)
	return &i
}

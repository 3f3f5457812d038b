// Package metrics provides custom Prometheus metrics for KrishiSahay.
package metrics

// Namespace prefixes every metric name.
const Namespace = "krishisahay"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Upstream service label values.
const (
	ServicePlaces      = "places"
	ServiceOpenWeather = "openweather"
	ServiceGemini      = "gemini"
	ServiceSpeech      = "speech"
	ServiceTTS         = "tts"
	ServiceScraper     = "scraper"
	ServiceOther       = "other"
)

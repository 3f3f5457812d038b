package conf

import "github.com/krishisahay/krishisahay-go/internal/logger"

// Masked returns a copy of s with every secret replaced by its masked form,
// suitable for printing.
func (s *Settings) Masked() *Settings {
	c := *s
	c.Server.AllowedOrigins = append([]string(nil), s.Server.AllowedOrigins...)
	c.Crisis.StormConditions = append([]string(nil), s.Crisis.StormConditions...)
	c.Crisis.DustConditions = append([]string(nil), s.Crisis.DustConditions...)

	for _, secret := range []*string{
		&c.Gemini.APIKey,
		&c.Google.APIKey,
		&c.Places.APIKey,
		&c.OpenWeather.APIKey,
		&c.Session.Secret,
		&c.Session.Redis.Password,
		&c.Database.MySQL.Password,
		&c.Sentry.DSN,
	} {
		*secret = logger.MaskSecret(*secret)
	}
	return &c
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/krishisahay/krishisahay-go/internal/lookup"
)

func (s *Server) govtSchemes(c echo.Context) error {
	page := 1
	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return s.badRequest(c, "page must be a positive integer")
		}
		page = n
	}

	schemes, err := s.deps.Schemes.Schemes(c.Request().Context(), page)
	if err != nil {
		return s.HandleError(c, err, "failed to load government schemes")
	}
	return c.JSON(http.StatusOK, map[string]any{"schemes": schemes})
}

func (s *Server) storeFinder(c echo.Context) error {
	lat, lon, err := lookup.ParseCoordinates(c.QueryParam("lat"), c.QueryParam("lon"))
	if err != nil {
		return s.HandleError(c, err, "invalid coordinates")
	}

	stores, err := s.deps.Stores.FindStores(c.Request().Context(), lat, lon, strings.TrimSpace(c.QueryParam("store_type")))
	if err != nil {
		return s.HandleError(c, err, "failed to search for stores")
	}
	return c.JSON(http.StatusOK, map[string]any{"stores": stores})
}

// placeDetails relays the upstream details document unchanged.
func (s *Server) placeDetails(c echo.Context) error {
	placeID := strings.TrimSpace(c.QueryParam("place_id"))
	if placeID == "" {
		return s.badRequest(c, "No place_id provided.")
	}

	raw, err := s.deps.Stores.PlaceDetails(c.Request().Context(), placeID)
	if err != nil {
		return s.HandleError(c, err, "failed to fetch place details")
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (s *Server) weather(c echo.Context) error {
	lat, lon, err := lookup.ParseCoordinates(c.QueryParam("lat"), c.QueryParam("lon"))
	if err != nil {
		return s.HandleError(c, err, "invalid coordinates")
	}

	forecast, err := s.deps.Weather.Forecast(c.Request().Context(), lat, lon)
	if err != nil {
		return s.HandleError(c, err, "failed to fetch weather forecast")
	}
	return c.JSON(http.StatusOK, forecast)
}

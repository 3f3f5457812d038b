package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

func TestResponseStatus(t *testing.T) {
	_, encodeErr := json.Marshal(math.Inf(1))
	require.Error(t, encodeErr)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no error", nil, http.StatusOK},
		{"validation", errors.ValidationError("price must be a non-negative number"), http.StatusBadRequest},
		{"echo error", echo.NewHTTPError(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge},
		{"unclassified", encodeErr, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/rentals", http.NoBody), httptest.NewRecorder())
			assert.Equal(t, tt.want, responseStatus(c, tt.err))
		})
	}
}

func TestResponseStatus_CommittedResponseWins(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), httptest.NewRecorder())
	require.NoError(t, c.NoContent(http.StatusAccepted))

	assert.Equal(t, http.StatusAccepted, responseStatus(c, errors.NewStd("late failure")))
}

func TestRequestID_SetsLogTraceID(t *testing.T) {
	env := newTestEnv(t)
	env.server.Echo().GET("/trace", func(c echo.Context) error {
		id, _ := c.Request().Context().Value(logger.TraceIDKey).(string)
		return c.String(http.StatusOK, id)
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/trace", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, rec.Body.String())
}

package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Credentials is the body of /register and /login.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) bindCredentials(c echo.Context) (*Credentials, error) {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return nil, err
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if err := c.Validate(&creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (s *Server) register(c echo.Context) error {
	creds, err := s.bindCredentials(c)
	if err != nil {
		return s.HandleError(c, asValidation(err), "invalid registration request")
	}

	if _, err := s.deps.Store.CreateAccount(c.Request().Context(), creds.Username, creds.Password); err != nil {
		return s.HandleError(c, err, "registration failed")
	}
	return c.JSON(http.StatusCreated, map[string]string{"message": "Registration successful."})
}

func (s *Server) login(c echo.Context) error {
	creds, err := s.bindCredentials(c)
	if err != nil {
		return s.HandleError(c, asValidation(err), "invalid login request")
	}

	account, err := s.deps.Store.Authenticate(c.Request().Context(), creds.Username, creds.Password)
	if err != nil {
		return s.HandleError(c, err, "login failed")
	}
	if err := s.deps.Sessions.Login(c.Response(), c.Request(), account.Username); err != nil {
		return s.HandleError(c, err, "failed to start session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Login successful."})
}

func (s *Server) logout(c echo.Context) error {
	if err := s.deps.Sessions.Logout(c.Response(), c.Request()); err != nil {
		return s.HandleError(c, err, "failed to end session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out."})
}

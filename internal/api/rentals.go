package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/krishisahay/krishisahay-go/internal/datastore"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/uploads"
)

// RentalRequest carries the listing fields of a POST /rentals call. Price is
// kept as text until every field has been checked.
type RentalRequest struct {
	Title          string `validate:"required"`
	Description    string `validate:"required"`
	Price          string `validate:"required"`
	Contact        string `validate:"required"`
	EquipmentType  string `validate:"required"`
	RentalDuration string `validate:"required"`
	Location       string `validate:"required"`
}

// rentalJSON is the JSON form of a listing. price may be a number or a string.
type rentalJSON struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Price          any    `json:"price"`
	Contact        string `json:"contact"`
	EquipmentType  string `json:"equipment_type"`
	RentalDuration string `json:"rental_duration"`
	Location       string `json:"location"`
}

func (s *Server) listRentals(c echo.Context) error {
	rentals, err := s.deps.Store.ListRentals(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "failed to list rentals")
	}
	return c.JSON(http.StatusOK, map[string]any{"rentals": rentals})
}

// createRental stores a listing for the logged-in user, with an optional
// photo when the body is multipart.
func (s *Server) createRental(c echo.Context) error {
	username, _ := c.Get(usernameKey).(string)

	req, err := s.bindRental(c)
	if err != nil {
		return s.HandleError(c, asValidation(err), "invalid rental listing")
	}
	price, err := datastore.ParsePrice(req.Price)
	if err != nil {
		return s.HandleError(c, err, "invalid rental listing")
	}

	rental := &datastore.Rental{
		Title:          req.Title,
		Description:    req.Description,
		Price:          price,
		Contact:        req.Contact,
		EquipmentType:  req.EquipmentType,
		RentalDuration: req.RentalDuration,
		Location:       req.Location,
		PostedBy:       username,
	}

	var stored *uploads.Stored
	if isMultipart(c) {
		fh, err := c.FormFile("photo")
		switch {
		case err == nil && fh.Filename != "":
			stored, err = s.deps.Uploads.Save(fh)
			if err != nil {
				return s.HandleError(c, err, "failed to store photo")
			}
			rental.Photo = stored.URL
			rental.PhotoPath = stored.Path
		case err != nil && !errors.Is(err, http.ErrMissingFile):
			return s.HandleError(c, asValidation(err), "failed to read photo upload")
		}
	}

	if err := s.deps.Store.CreateRental(c.Request().Context(), rental); err != nil {
		if stored != nil {
			s.deps.Uploads.Remove(stored.Path)
		}
		return s.HandleError(c, err, "failed to create rental")
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Rental listing created.",
		"rental":  rental,
	})
}

func (s *Server) bindRental(c echo.Context) (*RentalRequest, error) {
	var req RentalRequest
	if isMultipart(c) {
		req = RentalRequest{
			Title:          c.FormValue("title"),
			Description:    c.FormValue("description"),
			Price:          c.FormValue("price"),
			Contact:        c.FormValue("contact"),
			EquipmentType:  c.FormValue("equipment_type"),
			RentalDuration: c.FormValue("rental_duration"),
			Location:       c.FormValue("location"),
		}
	} else {
		var body rentalJSON
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return nil, err
		}
		req = RentalRequest{
			Title:          body.Title,
			Description:    body.Description,
			Price:          priceText(body.Price),
			Contact:        body.Contact,
			EquipmentType:  body.EquipmentType,
			RentalDuration: body.RentalDuration,
			Location:       body.Location,
		}
	}

	for _, f := range []*string{
		&req.Title, &req.Description, &req.Price, &req.Contact,
		&req.EquipmentType, &req.RentalDuration, &req.Location,
	} {
		*f = strings.TrimSpace(*f)
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// priceText renders a decoded JSON price as text. null and other types give "".
func priceText(v any) string {
	switch p := v.(type) {
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	case string:
		return p
	default:
		return ""
	}
}

// servePhoto streams a stored rental photo.
func (s *Server) servePhoto(c echo.Context) error {
	path, err := s.deps.Uploads.Path(c.Param("name"))
	if err != nil {
		return s.HandleError(c, err, "photo lookup failed")
	}
	return c.File(path)
}

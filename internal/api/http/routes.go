package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/coordinator"
	"github.com/i474232898/weather-dashboard/internal/favorites"
	"github.com/i474232898/weather-dashboard/internal/session"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

// Deps are the components the HTTP API drives.
type Deps struct {
	Coordinator *coordinator.Coordinator
	State       *session.State
	Cache       *cache.Store
	Geocoder    weather.Geocoder
	Favorites   *favorites.Store
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(d.State.Snapshot())
	})

	v1.Post("/weather/fetch", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		d.Coordinator.FetchByLocation(c.UserContext(), loc)
		if loc.City != "" && d.Favorites != nil {
			if err := d.Favorites.AddSearch(loc.City); err != nil {
				return err
			}
		}
		return c.JSON(d.State.Snapshot())
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		switch {
		case err == nil:
			d.Coordinator.Refresh(c.UserContext(), loc)
		case errors.Is(err, errNoLocation):
			if _, ok := d.Coordinator.LastLocation(); !ok {
				return fiber.NewError(fiber.StatusConflict, "no location to refresh")
			}
			d.Coordinator.RefreshCurrent(c.UserContext())
		default:
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(d.State.Snapshot())
	})

	v1.Delete("/weather", func(c *fiber.Ctx) error {
		d.Coordinator.Clear()
		return c.JSON(d.State.Snapshot())
	})

	v1.Get("/cache/ttl", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{
			"key":         loc.Key(),
			"remainingMs": d.Cache.RemainingTTL(loc).Milliseconds(),
		})
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		d.Cache.Clear()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/cities/search", func(c *fiber.Ctx) error {
		q := searchQuery{Query: strings.TrimSpace(c.Query("q")), Limit: c.QueryInt("limit", 10)}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		items, err := d.Geocoder.SearchCities(c.UserContext(), q.Query, q.Limit)
		if err != nil {
			return providerError(err)
		}
		return c.JSON(items)
	})

	v1.Get("/cities/reverse", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		if err != nil || !loc.HasCoords() {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lon query parameters are required")
		}

		items, err := d.Geocoder.ReverseGeocode(c.UserContext(), *loc.Lat, *loc.Lon)
		if err != nil {
			return providerError(err)
		}
		return c.JSON(items)
	})

	registerFavoriteRoutes(v1, d.Favorites)
}

func registerFavoriteRoutes(v1 fiber.Router, favs *favorites.Store) {
	v1.Get("/favorites", func(c *fiber.Ctx) error {
		return c.JSON(favs.List())
	})

	v1.Post("/favorites", func(c *fiber.Ctx) error {
		var req favoriteRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		city, err := favs.Add(req.toCity())
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(city)
	})

	v1.Delete("/favorites/:id", func(c *fiber.Ctx) error {
		if err := favs.Remove(c.Params("id")); err != nil {
			return favoritesError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Put("/favorites/order", func(c *fiber.Ctx) error {
		var req struct {
			IDs []string `json:"ids" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := favs.Reorder(req.IDs); err != nil {
			return favoritesError(err)
		}
		return c.JSON(favs.List())
	})

	v1.Put("/favorites/:id/weather", func(c *fiber.Ctx) error {
		var req struct {
			Temperature int    `json:"temperature"`
			Icon        string `json:"icon"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := favs.UpdateTemperature(c.Params("id"), req.Temperature, req.Icon); err != nil {
			return favoritesError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		return c.JSON(favs.SearchHistory())
	})

	v1.Delete("/history", func(c *fiber.Ctx) error {
		if err := favs.ClearSearchHistory(); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

var errNoLocation = errors.New("city or lat and lon query parameters are required")

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City string   `validate:"omitempty,max=100"`
	Lat  *float64 `validate:"omitempty,latitude"`
	Lon  *float64 `validate:"omitempty,longitude"`
}

func (l locationQuery) toLocation() weather.Location {
	if l.Lat != nil && l.Lon != nil {
		return weather.Location{Lat: l.Lat, Lon: l.Lon}
	}
	return weather.CityLocation(l.City)
}

func parseLocationQuery(c *fiber.Ctx) (weather.Location, error) {
	var q locationQuery

	q.City = strings.TrimSpace(c.Query("city"))

	var err error
	if q.Lat, err = parseFloatQuery(c, "lat"); err != nil {
		return weather.Location{}, err
	}
	if q.Lon, err = parseFloatQuery(c, "lon"); err != nil {
		return weather.Location{}, err
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		return weather.Location{}, errors.New("lat and lon must be provided together")
	}

	if err := validate.Struct(q); err != nil {
		return weather.Location{}, err
	}

	loc := q.toLocation()
	if loc.IsZero() {
		return weather.Location{}, errNoLocation
	}
	return loc, nil
}

func parseFloatQuery(c *fiber.Ctx, key string) (*float64, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid " + key + " query parameter")
	}
	return &v, nil
}

// searchQuery holds query parameters for the city search endpoint.
type searchQuery struct {
	Query string `validate:"required,max=100"`
	Limit int    `validate:"min=1,max=20"`
}

// favoriteRequest is the body of POST /favorites.
type favoriteRequest struct {
	Name      string  `json:"name" validate:"required"`
	Province  string  `json:"province"`
	District  string  `json:"district"`
	Country   string  `json:"country" validate:"required"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Lon       float64 `json:"lon" validate:"longitude"`
	QueryName string  `json:"queryName"`
}

func (r favoriteRequest) toCity() favorites.City {
	return favorites.City{
		Name:      r.Name,
		Province:  r.Province,
		District:  r.District,
		Country:   r.Country,
		Lat:       r.Lat,
		Lon:       r.Lon,
		QueryName: common.FirstNonEmpty(r.QueryName, r.Name),
	}
}

func favoritesError(err error) error {
	if errors.Is(err, favorites.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return err
}

// providerError maps a classified provider failure to an HTTP error.
func providerError(err error) error {
	code := fiber.StatusBadGateway
	switch weather.KindOf(err) {
	case weather.KindNotFound:
		code = fiber.StatusNotFound
	case weather.KindRateLimited:
		code = fiber.StatusTooManyRequests
	case weather.KindTimeout:
		code = fiber.StatusGatewayTimeout
	}
	return fiber.NewError(code, weather.UserMessage(err))
}

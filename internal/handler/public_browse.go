package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/movieon/reservation-core/internal/repository"
)

// PublicHandler serves unauthenticated browse endpoints.
type PublicHandler struct {
	Screenings *repository.ScreeningRepo
	Slots      *repository.ScreeningSeatRepo
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(screenings *repository.ScreeningRepo, slots *repository.ScreeningSeatRepo) *PublicHandler {
	if screenings == nil || slots == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	return &PublicHandler{Screenings: screenings, Slots: slots}
}

// SeatMap handles GET /v1/screenings/:id/seats. The response is served
// through the redis response cache, so freed or newly locked seats may
// lag by up to the cache TTL.
func (h *PublicHandler) SeatMap(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	ctx := c.Request().Context()
	screening, err := h.Screenings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrScreeningNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	seats, err := h.Slots.SeatMapByScreening(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if seats == nil {
		seats = []repository.SeatView{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"screening_id": screening.ID,
		"movie_title":  screening.MovieTitle,
		"starts_at":    screening.StartsAt,
		"status":       screening.Status,
		"seats":        seats,
	})
}

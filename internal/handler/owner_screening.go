package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

// OwnerHandler serves the scheduling surface used by venue owners.
// Requires the OWNER role.
type OwnerHandler struct {
	Store      *repository.Store
	Screenings *repository.ScreeningRepo
	Seats      *repository.SeatRepo
	Slots      *repository.ScreeningSeatRepo
	Log        *logrus.Logger
}

// NewOwnerHandler constructs an OwnerHandler.
func NewOwnerHandler(store *repository.Store, screenings *repository.ScreeningRepo, seats *repository.SeatRepo, slots *repository.ScreeningSeatRepo, log *logrus.Logger) *OwnerHandler {
	if store == nil || screenings == nil || seats == nil || slots == nil {
		panic("nil dependency passed to NewOwnerHandler")
	}
	return &OwnerHandler{Store: store, Screenings: screenings, Seats: seats, Slots: slots, Log: log}
}

// CreateScreening handles POST /v1/screenings. It creates the
// screening and bulk-creates one AVAILABLE seat slot per active seat
// of the auditorium, all in one transaction, after rejecting time
// overlaps with other screenings in the same auditorium.
func (h *OwnerHandler) CreateScreening(c echo.Context) error {
	var body struct {
		AuditoriumID uint64    `json:"auditorium_id"`
		MovieTitle   string    `json:"movie_title"`
		StartsAt     time.Time `json:"starts_at"`
		EndsAt       time.Time `json:"ends_at"`
		PriceCents   uint32    `json:"price_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.AuditoriumID == 0 || body.MovieTitle == "" || body.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "auditorium_id, movie_title and price_cents are required"})
	}
	if !body.EndsAt.After(body.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}

	screening := &model.Screening{
		AuditoriumID: body.AuditoriumID,
		MovieTitle:   body.MovieTitle,
		StartsAt:     body.StartsAt,
		EndsAt:       body.EndsAt,
		PriceCents:   body.PriceCents,
	}
	var (
		seatCount   int
		overlapping bool
	)
	err := h.Store.WithTx(c.Request().Context(), func(ctx context.Context) error {
		clashes, err := h.Screenings.FindOverlapping(ctx, body.AuditoriumID, body.StartsAt, body.EndsAt)
		if err != nil {
			return err
		}
		if len(clashes) > 0 {
			overlapping = true
			return nil
		}
		if err := h.Screenings.Create(ctx, screening); err != nil {
			return err
		}
		seats, err := h.Seats.ActiveByAuditorium(ctx, body.AuditoriumID)
		if err != nil {
			return err
		}
		slots := make([]model.ScreeningSeat, 0, len(seats))
		for _, s := range seats {
			slots = append(slots, model.ScreeningSeat{ScreeningID: screening.ID, SeatID: s.ID})
		}
		seatCount = len(slots)
		return h.Slots.CreateBulk(ctx, slots)
	})
	if err != nil {
		h.Log.WithError(err).Error("create screening failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if overlapping {
		return c.JSON(http.StatusConflict, echo.Map{"error": "auditorium already booked for this time window"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"screening_id": screening.ID,
		"status":       screening.Status,
		"seat_count":   seatCount,
	})
}

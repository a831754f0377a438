package handlers

import (
	"net/http"
	"strconv"

	"roomrental/models"
	"roomrental/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves elevated, admin-only booking views.
type AdminHandler struct {
	Service BookingService
}

func NewAdminHandler(svc BookingService) *AdminHandler {
	return &AdminHandler{Service: svc}
}

// ListBookingsHandler lists all bookings, optionally filtered by status and listing.
func (ah *AdminHandler) ListBookingsHandler(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter := models.BookingFilter{
		Status:    models.BookingStatus(c.Query("status")),
		ListingID: c.Query("listingId"),
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid offset", err.Error())
		return
	}

	bookings, err := ah.Service.ListAll(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "limit": filter.Limit, "offset": filter.Offset})
}

func queryInt(c *gin.Context, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
)

// RestLocationHandler handles requests for location REST endpoints.
type RestLocationHandler struct {
	locationService services.ILocationService
}

// NewRestLocationHandler creates a new RestLocationHandler.
func NewRestLocationHandler(locationService services.ILocationService) *RestLocationHandler {
	return &RestLocationHandler{locationService: locationService}
}

// LocationSuggestion is the API shape for a suggested market.
type LocationSuggestion struct {
	Label string `json:"label"`
	City  string `json:"city"`
	State string `json:"state"`
	Count int    `json:"count"`
}

// SearchLocations handles GET /v1/location/search
func (h *RestLocationHandler) SearchLocations(c *gin.Context) {
	query := c.Query("q") // Search query parameter
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing search query parameter 'q'"})
		return
	}

	limitStr := c.DefaultQuery("limit", "20") // Default limit
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 { // Add upper bound
		limit = 20
	}

	locations, err := h.locationService.SuggestLocations(c.Request.Context(), query, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search locations"})
		return
	}

	results := make([]LocationSuggestion, 0, len(locations))
	for _, loc := range locations {
		results = append(results, LocationSuggestion{
			Label: loc.Label(),
			City:  loc.City,
			State: loc.State,
			Count: loc.Count,
		})
	}

	c.JSON(http.StatusOK, results)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// RestAgentHandler handles REST requests for the agent directory.
type RestAgentHandler struct {
	agentService services.IAgentService
}

// NewRestAgentHandler creates a new RestAgentHandler.
func NewRestAgentHandler(agentService services.IAgentService) *RestAgentHandler {
	return &RestAgentHandler{agentService: agentService}
}

// SearchAgents handles GET /v1/agent/search
func (h *RestAgentHandler) SearchAgents(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	filters := services.AgentSearchFilters{
		Query:          c.Query("q"),
		City:           c.Query("city"),
		State:          c.Query("state"),
		Specialization: c.Query("specialization"),
		SortBy:         c.Query("sort"),
		Page:           page,
		Limit:          limit,
	}
	if featuredStr := c.Query("featured"); featuredStr != "" {
		featured := featuredStr == "true"
		filters.Featured = &featured
	}
	if minRatingStr := c.Query("min_rating"); minRatingStr != "" {
		if minRating, parseErr := strconv.ParseFloat(minRatingStr, 64); parseErr == nil {
			filters.MinRating = &minRating
		}
	}

	agents, pagination, err := h.agentService.SearchAgents(c.Request.Context(), filters)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search agents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       agents,
		"pagination": pagination,
	})
}

// GetTopAgents handles GET /v1/agent/top
func (h *RestAgentHandler) GetTopAgents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 10
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		days = 30
	}

	agents, err := h.agentService.GetTopAgents(c.Request.Context(), services.TopAgentsOptions{
		Limit:          limit,
		PeriodDays:     days,
		City:           c.Query("city"),
		State:          c.Query("state"),
		Specialization: c.Query("specialization"),
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rank agents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": agents})
}

// GetAgentStats handles GET /v1/agent/:id/stats
func (h *RestAgentHandler) GetAgentStats(c *gin.Context) {
	agentIDHex := c.Param("id")
	agentID, err := utils.ParseSixID(agentIDHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent ID format"})
		return
	}

	stats, err := h.agentService.GetAgentStats(c.Request.Context(), agentID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch agent stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetAgentActivities handles GET /v1/agent/:id/activity
func (h *RestAgentHandler) GetAgentActivities(c *gin.Context) {
	agentIDHex := c.Param("id")
	agentID, err := utils.ParseSixID(agentIDHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent ID format"})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		days = 30
	}

	activities, err := h.agentService.GetAgentActivities(c.Request.Context(), agentID, days)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch agent activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": activities})
}

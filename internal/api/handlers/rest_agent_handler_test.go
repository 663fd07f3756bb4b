package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/radheshyamgupta01/TLF-sub000/internal/api/handlers"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

func setupAgentRouter(mockSvc *MockAgentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestAgentHandler(mockSvc)
	r := gin.New()
	r.GET("/v1/agent/search", handler.SearchAgents)
	r.GET("/v1/agent/top", handler.GetTopAgents)
	r.GET("/v1/agent/:id/stats", handler.GetAgentStats)
	r.GET("/v1/agent/:id/activity", handler.GetAgentActivities)
	return r
}

func TestRestAgentHandler_SearchAgents_Filters(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	results := []models.AgentSearchResult{
		{User: models.User{Base: models.Base{ID: utils.NewSixID()}, Name: "Asha", Role: models.RoleAgent, Rating: 4.8}, PropertiesCount: 7},
	}
	mockSvc.On("SearchAgents", mock.Anything, mock.MatchedBy(func(f services.AgentSearchFilters) bool {
		return f.Query == "asha" && f.City == "Bengaluru" && f.Featured != nil && *f.Featured &&
			f.MinRating != nil && *f.MinRating == 4.0 && f.SortBy == "experience" &&
			f.Page == 2 && f.Limit == 10
	})).Return(results, models.NewPagination(2, 10, 15), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/search?q=asha&city=Bengaluru&featured=true&min_rating=4.0&sort=experience&page=2&limit=10", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	var data []models.AgentSearchResult
	assert.NoError(t, json.Unmarshal(respBody["data"], &data))
	assert.Len(t, data, 1)
	assert.Equal(t, 7, data[0].PropertiesCount)
	var pagination models.Pagination
	assert.NoError(t, json.Unmarshal(respBody["pagination"], &pagination))
	assert.Equal(t, 15, pagination.Total)
	assert.False(t, pagination.HasMore)
	mockSvc.AssertExpectations(t)
}

func TestRestAgentHandler_SearchAgents_LimitCapped(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	mockSvc.On("SearchAgents", mock.Anything, mock.MatchedBy(func(f services.AgentSearchFilters) bool {
		return f.Limit == 20 // Over-limit values fall back to the default
	})).Return([]models.AgentSearchResult{}, models.NewPagination(1, 20, 0), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/search?limit=500", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRestAgentHandler_GetTopAgents_Defaults(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	ranked := []models.AgentRanking{
		{User: models.User{Base: models.Base{ID: utils.NewSixID()}, Name: "Top Agent"}, ActiveListings: 5, RecentSales: 2, PerformanceScore: 61.5},
	}
	mockSvc.On("GetTopAgents", mock.Anything, mock.MatchedBy(func(opts services.TopAgentsOptions) bool {
		return opts.Limit == 10 && opts.PeriodDays == 30
	})).Return(ranked, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/top", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	var data []models.AgentRanking
	assert.NoError(t, json.Unmarshal(respBody["data"], &data))
	assert.Len(t, data, 1)
	assert.Equal(t, 61.5, data[0].PerformanceScore)
	mockSvc.AssertExpectations(t)
}

func TestRestAgentHandler_GetTopAgents_LocationFilter(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	mockSvc.On("GetTopAgents", mock.Anything, mock.MatchedBy(func(opts services.TopAgentsOptions) bool {
		return opts.Limit == 5 && opts.PeriodDays == 90 && opts.City == "Pune" && opts.Specialization == "commercial"
	})).Return([]models.AgentRanking{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/top?limit=5&days=90&city=Pune&specialization=commercial", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRestAgentHandler_GetAgentStats_Success(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	agentID := utils.NewSixID()
	avgHours := 4.25
	stats := &models.AgentStats{
		Listings:  models.AgentListingStats{Active: 3, Total: 10, Sold: 4},
		Inquiries: models.AgentInquiryStats{Total: 20, Responded: 15, ResponseRate: 75},
		Performance: models.AgentPerformanceStats{
			AverageResponseTimeHours: &avgHours,
			ConversionRate:           20,
		},
	}
	mockSvc.On("GetAgentStats", mock.Anything, agentID).Return(stats, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/"+agentID.String()+"/stats", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.AgentStats
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 75, got.Inquiries.ResponseRate)
	assert.NotNil(t, got.Performance.AverageResponseTimeHours)
	assert.Equal(t, 4.25, *got.Performance.AverageResponseTimeHours)
}

func TestRestAgentHandler_GetAgentStats_NotFound(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	agentID := utils.NewSixID()
	mockSvc.On("GetAgentStats", mock.Anything, agentID).Return(nil,
		&services.NotFoundError{Kind: "agent", ID: agentID.String()})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/"+agentID.String()+"/stats", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var respBody map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, "Agent not found", respBody["error"])
}

func TestRestAgentHandler_GetAgentStats_InvalidID(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/zzz/stats", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "GetAgentStats", mock.Anything, mock.Anything)
}

func TestRestAgentHandler_GetAgentActivities_Success(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	agentID := utils.NewSixID()
	activities := []models.AgentActivity{
		{Type: "listing", Action: "created listing"},
		{Type: "inquiry", Action: "received inquiry"},
	}
	mockSvc.On("GetAgentActivities", mock.Anything, agentID, 30).Return(activities, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/"+agentID.String()+"/activity", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	var data []models.AgentActivity
	assert.NoError(t, json.Unmarshal(respBody["data"], &data))
	assert.Len(t, data, 2)
	assert.Equal(t, "listing", data[0].Type)
	mockSvc.AssertExpectations(t)
}

func TestRestAgentHandler_GetAgentActivities_NotFound(t *testing.T) {
	mockSvc := new(MockAgentService)
	r := setupAgentRouter(mockSvc)

	agentID := utils.NewSixID()
	mockSvc.On("GetAgentActivities", mock.Anything, agentID, 30).Return(nil,
		&services.NotFoundError{Kind: "agent", ID: agentID.String()})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/agent/"+agentID.String()+"/activity", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

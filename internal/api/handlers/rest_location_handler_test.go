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
)

func setupLocationRouter(mockSvc *MockLocationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestLocationHandler(mockSvc)
	r := gin.New()
	r.GET("/v1/location/search", handler.SearchLocations)
	return r
}

func TestRestLocationHandler_SearchLocations_Success(t *testing.T) {
	mockSvc := new(MockLocationService)
	r := setupLocationRouter(mockSvc)

	locations := []models.Location{
		{City: "Bengaluru", State: "Karnataka", Count: 42},
		{City: "Belagavi", State: "Karnataka", Count: 3},
	}
	mockSvc.On("SuggestLocations", mock.Anything, "be", 20).Return(locations, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/location/search?q=be", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []handlers.LocationSuggestion
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "Bengaluru, Karnataka", got[0].Label)
	assert.Equal(t, 42, got[0].Count)
	mockSvc.AssertExpectations(t)
}

func TestRestLocationHandler_SearchLocations_MissingQuery(t *testing.T) {
	mockSvc := new(MockLocationService)
	r := setupLocationRouter(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/location/search", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "SuggestLocations", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestLocationHandler_SearchLocations_LimitFallback(t *testing.T) {
	mockSvc := new(MockLocationService)
	r := setupLocationRouter(mockSvc)

	mockSvc.On("SuggestLocations", mock.Anything, "pune", 20).Return([]models.Location{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/location/search?q=pune&limit=9999", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

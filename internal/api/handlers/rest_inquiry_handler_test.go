package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/api/handlers"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/tasks"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

type inquiryHandlerMocks struct {
	inquirySvc *MockInquiryService
	listingSvc *MockListingService
	userSvc    *MockUserService
	taskClient *MockAsynqClient
}

func setupInquiryRouterFull(t *testing.T) (*gin.Engine, *inquiryHandlerMocks) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := &inquiryHandlerMocks{
		inquirySvc: new(MockInquiryService),
		listingSvc: new(MockListingService),
		userSvc:    new(MockUserService),
		taskClient: new(MockAsynqClient),
	}
	handler := handlers.NewRestInquiryHandler(m.inquirySvc, m.listingSvc, m.userSvc, m.taskClient)
	r := gin.New()
	r.POST("/v1/inquiry", handler.CreateInquiry)
	r.GET("/v1/listing/:id/inquiries", handler.ListListingInquiries)
	r.GET("/v1/inquiries/general", handler.ListGeneralInquiries)
	r.GET("/v1/inquiry/:id", handler.GetInquiryByID)
	return r, m
}

func setupInquiryRouter(mockSvc *MockInquiryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestInquiryHandler(mockSvc, new(MockListingService), new(MockUserService), new(MockAsynqClient))
	r := gin.New()
	r.GET("/v1/listing/:id/inquiries", handler.ListListingInquiries)
	r.GET("/v1/inquiries/general", handler.ListGeneralInquiries)
	r.GET("/v1/inquiry/:id", handler.GetInquiryByID)
	return r
}

func TestRestInquiryHandler_CreateInquiry_ListingBound(t *testing.T) {
	r, m := setupInquiryRouterFull(t)

	listingID := utils.NewSixID()
	ownerID := utils.NewSixID()
	listing := &models.Listing{
		Base:   models.Base{ID: listingID},
		UserID: ownerID,
		Title:  "3BHK Garden View",
		Status: models.ListingStatusActive,
	}
	m.listingSvc.On("FindListingByID", mock.Anything, listingID).Return(listing, nil)

	created := &models.Inquiry{
		Base:          models.Base{ID: utils.NewSixID()},
		ListingID:     &listingID,
		InquirerName:  "Ravi",
		InquirerEmail: "ravi@example.com",
		Status:        models.InquiryStatusNew,
	}
	m.inquirySvc.On("CreateInquiry", mock.Anything, mock.MatchedBy(func(in services.CreateInquiryInput) bool {
		return in.Name == "Ravi" && in.ListingID != nil && *in.ListingID == listingID &&
			in.ListingOwnerID != nil && *in.ListingOwnerID == ownerID && in.Metadata != nil
	})).Return(created, nil)

	m.userSvc.On("FindByID", mock.Anything, ownerID).Return(&models.User{
		Base:  models.Base{ID: ownerID},
		Name:  "Owner Agent",
		Email: "owner@example.com",
	}, nil)
	m.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeEmailDelivery {
			return false
		}
		var p tasks.EmailTaskPayload
		e := json.Unmarshal(task.Payload(), &p)
		return e == nil && p.To == "owner@example.com" && p.TemplateID == "inquiry_received"
	})).Return(&asynq.TaskInfo{}, nil)

	body := fmt.Sprintf(`{"listingId":"%s","name":"Ravi","email":"ravi@example.com","phone":"9876543210","message":"Still available?","source":"website"}`, listingID.String())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var got models.Inquiry
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	m.inquirySvc.AssertExpectations(t)
	m.taskClient.AssertExpectations(t)
}

func TestRestInquiryHandler_CreateInquiry_General(t *testing.T) {
	r, m := setupInquiryRouterFull(t)

	created := &models.Inquiry{
		Base:          models.Base{ID: utils.NewSixID()},
		InquirerName:  "Meena",
		InquirerEmail: "meena@example.com",
		Status:        models.InquiryStatusNew,
	}
	m.inquirySvc.On("CreateInquiry", mock.Anything, mock.MatchedBy(func(in services.CreateInquiryInput) bool {
		return in.ListingID == nil && in.ListingOwnerID == nil
	})).Return(created, nil)

	body := `{"name":"Meena","email":"meena@example.com","phone":"9898989898","message":"Looking to buy in Indore"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	m.listingSvc.AssertNotCalled(t, "FindListingByID", mock.Anything, mock.Anything)
	m.taskClient.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)
}

func TestRestInquiryHandler_CreateInquiry_ValidationError(t *testing.T) {
	r, m := setupInquiryRouterFull(t)

	m.inquirySvc.On("CreateInquiry", mock.Anything, mock.Anything).Return(nil,
		&services.ValidationError{Fields: map[string]string{"phone": "must be 10 digits"}})

	body := `{"name":"Meena","email":"meena@example.com","phone":"123"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "phone: must be 10 digits")
}

func TestRestInquiryHandler_CreateInquiry_ListingMissing(t *testing.T) {
	r, m := setupInquiryRouterFull(t)

	listingID := utils.NewSixID()
	m.listingSvc.On("FindListingByID", mock.Anything, listingID).Return(nil, mongo.ErrNoDocuments)

	body := fmt.Sprintf(`{"listingId":"%s","name":"Ravi","email":"ravi@example.com","phone":"9876543210"}`, listingID.String())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	m.inquirySvc.AssertNotCalled(t, "CreateInquiry", mock.Anything, mock.Anything)
}

func TestRestInquiryHandler_ListListingInquiries_Success(t *testing.T) {
	mockSvc := new(MockInquiryService)
	r := setupInquiryRouter(mockSvc)

	listingID := utils.NewSixID()
	inquiries := []models.Inquiry{
		{Base: models.Base{ID: utils.NewSixID()}, ListingID: &listingID, Status: models.InquiryStatusNew},
		{Base: models.Base{ID: utils.NewSixID()}, ListingID: &listingID, Status: models.InquiryStatusContacted},
	}
	mockSvc.On("ListByListing", mock.Anything, &listingID, mock.MatchedBy(func(opts services.ListInquiriesOptions) bool {
		return opts.Page == 1 && opts.Limit == 20 && opts.SortBy == "createdAt" && opts.SortOrder == -1 && opts.Status == nil
	})).Return(inquiries, models.NewPagination(1, 20, 2), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", fmt.Sprintf("/v1/listing/%s/inquiries", listingID.String()), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	var data []models.Inquiry
	assert.NoError(t, json.Unmarshal(respBody["data"], &data))
	assert.Len(t, data, 2)
	var pagination models.Pagination
	assert.NoError(t, json.Unmarshal(respBody["pagination"], &pagination))
	assert.Equal(t, 2, pagination.Total)
	assert.False(t, pagination.HasMore)
	mockSvc.AssertExpectations(t)
}

func TestRestInquiryHandler_ListListingInquiries_QueryParams(t *testing.T) {
	mockSvc := new(MockInquiryService)
	r := setupInquiryRouter(mockSvc)

	listingID := utils.NewSixID()
	statusNew := models.InquiryStatusNew
	mockSvc.On("ListByListing", mock.Anything, &listingID, mock.MatchedBy(func(opts services.ListInquiriesOptions) bool {
		return opts.Page == 3 && opts.Limit == 5 && opts.SortBy == "priority" && opts.SortOrder == 1 &&
			opts.Status != nil && *opts.Status == statusNew
	})).Return([]models.Inquiry{}, models.NewPagination(3, 5, 11), nil)

	w := httptest.NewRecorder()
	url := fmt.Sprintf("/v1/listing/%s/inquiries?page=3&limit=5&sort_by=priority&sort_order=asc&status=new", listingID.String())
	req, _ := http.NewRequest("GET", url, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRestInquiryHandler_ListListingInquiries_InvalidID(t *testing.T) {
	mockSvc := new(MockInquiryService)
	r := setupInquiryRouter(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/not-an-id/inquiries", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "ListByListing", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestInquiryHandler_ListGeneralInquiries(t *testing.T) {
	mockSvc := new(MockInquiryService)
	r := setupInquiryRouter(mockSvc)

	general := []models.Inquiry{
		{Base: models.Base{ID: utils.NewSixID()}, Status: models.InquiryStatusNew},
	}
	mockSvc.On("ListByListing", mock.Anything, (*utils.SixID)(nil), mock.Anything).
		Return(general, models.NewPagination(1, 20, 1), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/inquiries/general", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	var data []models.Inquiry
	assert.NoError(t, json.Unmarshal(respBody["data"], &data))
	assert.Len(t, data, 1)
	assert.Nil(t, data[0].ListingID)
	mockSvc.AssertExpectations(t)
}

func TestRestInquiryHandler_GetInquiryByID_NotFound(t *testing.T) {
	mockSvc := new(MockInquiryService)
	r := setupInquiryRouter(mockSvc)

	inquiryID := utils.NewSixID()
	mockSvc.On("FindInquiryByID", mock.Anything, inquiryID).Return(nil,
		&services.NotFoundError{Kind: "inquiry", ID: inquiryID.String()})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/inquiry/"+inquiryID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestInquiryHandler_GetInquiryByID_Success(t *testing.T) {
	mockSvc := new(MockInquiryService)
	r := setupInquiryRouter(mockSvc)

	inquiryID := utils.NewSixID()
	inquiry := &models.Inquiry{
		Base:          models.Base{ID: inquiryID},
		InquirerName:  "Ravi",
		InquirerEmail: "ravi@example.com",
		Status:        models.InquiryStatusNew,
		Priority:      models.InquiryPriorityMedium,
	}
	mockSvc.On("FindInquiryByID", mock.Anything, inquiryID).Return(inquiry, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/inquiry/"+inquiryID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Inquiry
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, inquiryID, got.ID)
	assert.Equal(t, models.InquiryStatusNew, got.Status)
}

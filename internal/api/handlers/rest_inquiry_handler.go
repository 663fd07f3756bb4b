package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/tasks"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// RestInquiryHandler handles REST requests for inquiries.
type RestInquiryHandler struct {
	inquiryService services.IInquiryService
	listingService services.IListingService
	userService    services.IUserService
	taskClient     IAsynqClient
}

// NewRestInquiryHandler creates a new RestInquiryHandler.
func NewRestInquiryHandler(inquiryService services.IInquiryService, listingService services.IListingService, userService services.IUserService, taskClient IAsynqClient) *RestInquiryHandler {
	return &RestInquiryHandler{
		inquiryService: inquiryService,
		listingService: listingService,
		userService:    userService,
		taskClient:     taskClient,
	}
}

// inquiryListOptionsFromQuery reads the common paging/filter/sort parameters.
func inquiryListOptionsFromQuery(c *gin.Context) services.ListInquiriesOptions {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	opts := services.ListInquiriesOptions{
		Page:      page,
		Limit:     limit,
		SortBy:    c.DefaultQuery("sort_by", "createdAt"),
		SortOrder: -1,
	}
	if c.Query("sort_order") == "asc" {
		opts.SortOrder = 1
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.InquiryStatus(statusStr)
		opts.Status = &status
	}
	return opts
}

// restInquiryError maps service errors onto HTTP status codes.
func restInquiryError(c *gin.Context, err error, fallback string) {
	var vErr *services.ValidationError
	var nfErr *services.NotFoundError
	var fuErr *services.FollowUpNotAllowedError
	var trErr *services.InvalidTransitionError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.As(err, &nfErr):
		c.JSON(http.StatusNotFound, gin.H{"error": nfErr.Error()})
	case errors.As(err, &fuErr):
		c.JSON(http.StatusConflict, gin.H{"error": fuErr.Error()})
	case errors.As(err, &trErr):
		c.JSON(http.StatusConflict, gin.H{"error": trErr.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// CreateInquiryRequest is the public lead form payload.
type CreateInquiryRequest struct {
	ListingID string `json:"listingId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Source    string `json:"source"`
}

// CreateInquiry handles POST /v1/inquiry. This is the unauthenticated lead
// form: field validation happens in the service, so a guest submitting bad
// data gets the named field errors back.
func (h *RestInquiryHandler) CreateInquiry(c *gin.Context) {
	var req CreateInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	input := services.CreateInquiryInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
		Source:  req.Source,
		Metadata: &models.InquiryMetadata{
			UserAgent: c.Request.UserAgent(),
			IPAddress: c.ClientIP(),
			Referrer:  c.Request.Referer(),
		},
	}

	var listing *models.Listing
	if req.ListingID != "" {
		listingID, err := utils.ParseSixID(req.ListingID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
			return
		}
		listing, err = h.listingService.FindListingByID(ctx, listingID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
			return
		}
		input.ListingID = &listing.ID
		input.ListingOwnerID = &listing.UserID
	}

	inquiry, err := h.inquiryService.CreateInquiry(ctx, input)
	if err != nil {
		restInquiryError(c, err, "Failed to save inquiry")
		return
	}

	// Owner notification is best-effort; the lead is already stored.
	if listing != nil {
		if owner, ownerErr := h.userService.FindByID(ctx, listing.UserID); ownerErr == nil {
			payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
				To:         owner.Email,
				TemplateID: "inquiry_received",
				Data: map[string]interface{}{
					"inquiry_id":     inquiry.ID.String(),
					"inquirer_name":  inquiry.InquirerName,
					"inquirer_email": inquiry.InquirerEmail,
					"message":        inquiry.Message,
					"listing_id":     listing.ID.String(),
					"listing_title":  listing.Title,
					"owner_name":     owner.Name,
				},
			})
			task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
			if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
				log.Printf("ERROR enqueuing inquiry email for listing %s, inquiry %s: %v", listing.ID.String(), inquiry.ID.String(), enqueueErr)
			}
		} else {
			log.Printf("Error fetching owner %s for listing %s to send inquiry email: %v", listing.UserID.String(), listing.ID.String(), ownerErr)
		}
	}

	c.JSON(http.StatusCreated, inquiry)
}

// ListListingInquiries handles GET /v1/listing/:id/inquiries
func (h *RestInquiryHandler) ListListingInquiries(c *gin.Context) {
	listingIDHex := c.Param("id")
	listingID, err := utils.ParseSixID(listingIDHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	opts := inquiryListOptionsFromQuery(c)
	inquiries, pagination, err := h.inquiryService.ListByListing(c.Request.Context(), &listingID, opts)
	if err != nil {
		restInquiryError(c, err, "Failed to list inquiries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       inquiries,
		"pagination": pagination,
	})
}

// ListGeneralInquiries handles GET /v1/inquiries/general
// General inquiries are leads with no listing attached at all.
func (h *RestInquiryHandler) ListGeneralInquiries(c *gin.Context) {
	opts := inquiryListOptionsFromQuery(c)
	inquiries, pagination, err := h.inquiryService.ListByListing(c.Request.Context(), nil, opts)
	if err != nil {
		restInquiryError(c, err, "Failed to list inquiries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       inquiries,
		"pagination": pagination,
	})
}

// GetInquiryByID handles GET /v1/inquiry/:id
func (h *RestInquiryHandler) GetInquiryByID(c *gin.Context) {
	inquiryIDHex := c.Param("id")
	inquiryID, err := utils.ParseSixID(inquiryIDHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid inquiry ID format"})
		return
	}

	inquiry, err := h.inquiryService.FindInquiryByID(c.Request.Context(), inquiryID)
	if err != nil {
		restInquiryError(c, err, "Failed to retrieve inquiry")
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

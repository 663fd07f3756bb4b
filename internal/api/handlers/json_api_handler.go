package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/auth"
	"github.com/radheshyamgupta01/TLF-sub000/internal/config"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/storage"
	"github.com/radheshyamgupta01/TLF-sub000/internal/tasks"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// Helper to get AuthResult from context
func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg            *config.Config
	db             *mongo.Database
	rdb            *redis.Client
	userService    services.IUserService
	listingService services.IListingService
	inquiryService services.IInquiryService
	agentService   services.IAgentService
	storageService storage.IS3Storage
	taskClient     IAsynqClient
	methods        map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
// Accepts interfaces for dependencies.
func NewJsonApiHandler(
	cfg *config.Config,
	db *mongo.Database,
	rdb *redis.Client,
	taskClient IAsynqClient,
	userService services.IUserService,
	listingService services.IListingService,
	inquiryService services.IInquiryService,
	agentService services.IAgentService,
	storageService storage.IS3Storage,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:            cfg,
		db:             db,
		rdb:            rdb,
		taskClient:     taskClient,
		userService:    userService,
		listingService: listingService,
		inquiryService: inquiryService,
		agentService:   agentService,
		storageService: storageService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                         h.ping,
		"register":                     h.register,
		"login":                        h.login,
		"changePassword":               h.changePassword,
		"createListing":                h.createListing,
		"updateListing":                h.updateListing,
		"publishListing":               h.publishListing,
		"markListingSold":              h.markListingSold,
		"deleteListing":                h.deleteListing,
		"getUploadURL":                 h.getUploadURL,
		"confirmImageUpload":           h.confirmImageUpload,
		"sendInquiry":                  h.sendInquiry,
		"transitionInquiryStatus":      h.transitionInquiryStatus,
		"respondToInquiry":             h.respondToInquiry,
		"logFollowUp":                  h.logFollowUp,
		"getInquiryStats":              h.getInquiryStats,
		"listInquiriesNeedingFollowUp": h.listInquiriesNeedingFollowUp,
		"deactivateUser":               h.deactivateUser,
		"reactivateUser":               h.reactivateUser,
		"setUserFeatured":              h.setUserFeatured,
		"setAgentRating":               h.setAgentRating,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	authErr := h.checkAuthForMethod(c, req.Method)
	if authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	var result interface{}
	var apiErr *ApiError

	if handlerFunc, ok := h.methods[req.Method]; ok {
		result, apiErr = handlerFunc(c, req.Arguments)
	} else {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// AuthResult holds optional authentication details
type AuthResult struct {
	UserID  *utils.SixID // Pointer to allow nil for guests
	Role    models.UserRole
	IsAdmin bool
}

// checkAuthForMethod checks if auth is needed and validates/extracts details if so.
// It stores the AuthResult in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	needsAuth := h.methodRequiresAuth(method)
	needsAdmin := h.methodRequiresAdmin(method)
	var authRes *AuthResult

	if !needsAuth && !needsAdmin {
		// If method is public, check if an optional Auth header is present anyway
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
			if err == nil { // Token is valid
				userID, _ := utils.ParseSixID(claims.UserID)
				authRes = &AuthResult{UserID: &userID, Role: models.UserRole(claims.Role), IsAdmin: claims.IsAdmin()}
			} else {
				// Invalid optional token? Log it but proceed as guest
				log.Printf("DEBUG: Invalid optional auth token provided for method %s: %v", method, err)
				authRes = &AuthResult{} // Guest
			}
		} else {
			authRes = &AuthResult{} // Guest
		}
		ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
		c.Request = c.Request.WithContext(ctx)
		return nil // Proceed as guest or with optional auth
	}

	// Auth is required
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	tokenString := parts[1]
	claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
	if err != nil {
		log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
		return NewApiError(fmt.Sprintf("Invalid or expired token: %v", err))
	}

	userID, idErr := utils.ParseSixID(claims.UserID)
	if idErr != nil {
		log.Printf("ERROR: Invalid UserID (%s) in valid JWT for method %s", claims.UserID, method)
		return NewApiError("Internal error")
	}

	// Check admin privileges if required
	if needsAdmin && !claims.IsAdmin() {
		log.Printf("DEBUG: Admin privileges required but not present for method %s", method)
		return NewApiError("Administrator privileges required")
	}

	authRes = &AuthResult{UserID: &userID, Role: models.UserRole(claims.Role), IsAdmin: claims.IsAdmin()}
	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	// List authenticated methods
	case "changePassword",
		"createListing",
		"updateListing",
		"publishListing",
		"markListingSold",
		"deleteListing",
		"getUploadURL",
		"confirmImageUpload",
		"transitionInquiryStatus",
		"respondToInquiry",
		"logFollowUp",
		"getInquiryStats",
		"listInquiriesNeedingFollowUp",
		"deactivateUser",  // Admin, so requires auth
		"reactivateUser",  // Admin, so requires auth
		"setUserFeatured", // Admin, so requires auth
		"setAgentRating":  // Admin, so requires auth
		return true // This applies to all preceding cases in this block

	// Public methods by default
	case "ping",
		"register",
		"login",
		"sendInquiry": // Public, AuthResult is checked in handler
		return false // This applies to all preceding cases in this block

	default:
		log.Printf("Warning: methodRequiresAuth check for unlisted method '%s', defaulting to false (public)", method)
		return false
	}
}

// methodRequiresAdmin checks if a given API method requires admin privileges.
func (h *JsonApiHandler) methodRequiresAdmin(method string) bool {
	switch method {
	// List admin-only methods
	case "deactivateUser",
		"reactivateUser",
		"setUserFeatured",
		"setAgentRating":
		return true
	default:
		return false
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	resp := JsonApiResponse{Success: false, Error: message}
	c.JSON(http.StatusOK, resp)
}

// apiErrorFrom maps well-known service errors onto user-facing messages.
// Unexpected errors get the generic fallback so internals never leak.
func apiErrorFrom(err error, fallback string) *ApiError {
	var vErr *services.ValidationError
	var nfErr *services.NotFoundError
	var fuErr *services.FollowUpNotAllowedError
	var trErr *services.InvalidTransitionError
	switch {
	case errors.As(err, &vErr):
		return NewApiError(vErr.Error())
	case errors.As(err, &nfErr):
		return NewApiError(nfErr.Error())
	case errors.As(err, &fuErr):
		return NewApiError(fuErr.Error())
	case errors.As(err, &trErr):
		return NewApiError(trErr.Error())
	default:
		return NewApiError(fallback)
	}
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args // Explicitly ignore unused args
	return "pong", nil
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// RegisterArgs defines the arguments for the register method.
type RegisterArgs struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	Role           string `json:"role"`
	Experience     int    `json:"experience"`
	City           string `json:"city"`
	State          string `json:"state"`
	Specialization string `json:"specialization"`
}

// AuthResponse is returned on successful register/login.
type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	ID    string `json:"id"`
	Role  string `json:"role"`
}

func (h *JsonApiHandler) register(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs RegisterArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.Register(ctx, services.RegisterUserInput{
		Name:           reqArgs.Name,
		Email:          reqArgs.Email,
		Password:       reqArgs.Password,
		Phone:          reqArgs.Phone,
		Role:           models.UserRole(reqArgs.Role),
		Experience:     reqArgs.Experience,
		City:           reqArgs.City,
		State:          reqArgs.State,
		Specialization: reqArgs.Specialization,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			return nil, NewApiError("Email already registered")
		}
		log.Printf("Error registering user %s: %v", reqArgs.Email, err)
		return nil, apiErrorFrom(err, "Registration failed")
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for new user %s: %v", user.ID.String(), err)
		return nil, NewApiError("Failed to generate session token")
	}

	// Welcome email is best-effort; the account exists either way.
	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         user.Email,
		TemplateID: "welcome",
		Data:       map[string]interface{}{"name": user.Name},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
		log.Printf("ERROR enqueuing welcome email for user %s: %v", user.ID.String(), enqueueErr)
	}

	log.Printf("Registered new user %s (%s) with role %s", user.ID.String(), user.Email, user.Role)
	return AuthResponse{
		Token: token,
		Email: user.Email,
		ID:    user.ID.String(),
		Role:  string(user.Role),
	}, nil
}

// LoginArgs defines the arguments for the login method.
type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *JsonApiHandler) login(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LoginArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.Authenticate(ctx, reqArgs.Email, reqArgs.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			// Do not reveal whether the account exists or is deactivated.
			log.Printf("Login attempt failed for %s", reqArgs.Email)
			return false, nil // Return Data: false, Success: true
		}
		log.Printf("DB error authenticating user %s: %v", reqArgs.Email, err)
		return nil, NewApiError("Database error")
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s (%s): %v", user.ID.String(), reqArgs.Email, err)
		return nil, NewApiError("Failed to generate session token")
	}
	log.Printf("Login successful for user %s (%s)", user.ID.String(), reqArgs.Email)
	return AuthResponse{
		Token: token,
		Email: user.Email,
		ID:    user.ID.String(),
		Role:  string(user.Role),
	}, nil
}

// changePassword handles password changes for authenticated users.
// Arguments are a direct JSON array of two strings [current_password, new_password].
func (h *JsonApiHandler) changePassword(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required to change password")
	}

	var passwords []string
	if err := json.Unmarshal(args, &passwords); err != nil {
		return nil, NewApiError("Invalid arguments: expected array of two strings [current_password, new_password]")
	}
	if len(passwords) != 2 {
		return nil, NewApiError("Expected array with exactly 2 elements: [current_password, new_password]")
	}

	err := h.userService.ChangePassword(c.Request.Context(), *authInfo.UserID, passwords[0], passwords[1])
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			// Wrong current password is not an API error.
			return false, nil // Success: true, Data: false
		}
		log.Printf("Error changing password for user %s: %v", authInfo.UserID.String(), err)
		return nil, apiErrorFrom(err, "Failed to update password")
	}

	return true, nil // Success: true, Data: true
}

// CreateListingArgs defines the arguments for the createListing method.
type CreateListingArgs struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	ListingType  string  `json:"listingType"`
	PropertyType string  `json:"propertyType"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    int     `json:"bathrooms"`
	AreaSqft     float64 `json:"areaSqft"`
}

func (h *JsonApiHandler) createListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required to create listing")
	}

	var reqArgs CreateListingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	newListing, err := h.listingService.CreateListing(ctx, *authInfo.UserID, services.CreateListingInput{
		Title:        reqArgs.Title,
		Description:  reqArgs.Description,
		Price:        reqArgs.Price,
		ListingType:  models.ListingType(reqArgs.ListingType),
		PropertyType: reqArgs.PropertyType,
		Address:      reqArgs.Address,
		City:         reqArgs.City,
		State:        reqArgs.State,
		Bedrooms:     reqArgs.Bedrooms,
		Bathrooms:    reqArgs.Bathrooms,
		AreaSqft:     reqArgs.AreaSqft,
	})
	if err != nil {
		log.Printf("Error creating listing for user %s: %v", authInfo.UserID.String(), err)
		return nil, apiErrorFrom(err, "Failed to create listing")
	}

	log.Printf("Created new listing %s for user %s", newListing.ID.String(), authInfo.UserID.String())
	return newListing, nil
}

// UpdateListingArgs expects the listing ID and a map of fields to update.
type UpdateListingArgs struct {
	ListingID string                 `json:"listing_id"`
	Updates   map[string]interface{} `json:"updates"`
}

func (h *JsonApiHandler) updateListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required to update listing")
	}

	var reqArgs UpdateListingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	if len(reqArgs.Updates) == 0 {
		return nil, NewApiError("No updates provided")
	}

	ctx := c.Request.Context()
	updatedListing, err := h.listingService.UpdateListing(ctx, listingID, *authInfo.UserID, reqArgs.Updates)
	if err != nil {
		log.Printf("Error updating listing %s for user %s: %v", reqArgs.ListingID, authInfo.UserID.String(), err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not owned") {
			return nil, NewApiError("Listing not found or access denied")
		} else if strings.Contains(err.Error(), "cannot be updated") {
			return nil, NewApiError(err.Error()) // Pass specific field error
		}
		return nil, NewApiError("Failed to update listing")
	}

	return updatedListing, nil
}

// parseSixIDFromArgs reads the single string argument common to the
// publish/sold/delete/follow-up methods and parses it as an ID.
func (h *JsonApiHandler) parseSixIDFromArgs(args json.RawMessage, label string) (utils.SixID, *ApiError) {
	var idHex string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &idHex); apiErr != nil {
		return utils.SixID{}, apiErr
	}
	id, err := utils.ParseSixID(idHex)
	if err != nil {
		return utils.SixID{}, NewApiError(fmt.Sprintf("Invalid %s format in argument", label))
	}
	return id, nil
}

func (h *JsonApiHandler) publishListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	listingID, apiErr := h.parseSixIDFromArgs(args, "listing_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	err := h.listingService.PublishListing(ctx, listingID, *authInfo.UserID)
	if err != nil {
		log.Printf("Error publishing listing %s for user %s: %v", listingID.String(), authInfo.UserID.String(), err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not owned") {
			return nil, NewApiError("Listing not found or access denied")
		} else if strings.Contains(err.Error(), "not pending") {
			return nil, NewApiError("Listing is not pending publication")
		}
		return nil, NewApiError("Failed to publish listing")
	}

	return nil, nil // Success, no result body
}

func (h *JsonApiHandler) markListingSold(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	listingID, apiErr := h.parseSixIDFromArgs(args, "listing_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	err := h.listingService.MarkListingSold(ctx, listingID, *authInfo.UserID)
	if err != nil {
		log.Printf("Error marking listing %s sold for user %s: %v", listingID.String(), authInfo.UserID.String(), err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not owned") {
			return nil, NewApiError("Listing not found or access denied")
		} else if strings.Contains(err.Error(), "not active") {
			return nil, NewApiError("Listing is not active")
		}
		return nil, NewApiError("Failed to mark listing sold")
	}
	return nil, nil // Success
}

func (h *JsonApiHandler) deleteListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	listingID, apiErr := h.parseSixIDFromArgs(args, "listing_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	err := h.listingService.DeleteListing(ctx, listingID, *authInfo.UserID)
	if err != nil {
		log.Printf("Error deleting listing %s for user %s: %v", listingID.String(), authInfo.UserID.String(), err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not owned") {
			return nil, NewApiError("Listing not found or access denied")
		} else if strings.Contains(err.Error(), "already deleted") {
			// Already deleted, treat as success
			log.Printf("Attempted to delete already deleted listing %s", listingID.String())
			return nil, nil
		}
		return nil, NewApiError("Failed to delete listing")
	}
	return nil, nil // Success
}

// GetUploadURLArgs defines the arguments for the getUploadURL method.
type GetUploadURLArgs struct {
	ListingID   string `json:"listing_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	userIDHex := authInfo.UserID.String()

	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if reqArgs.ListingID == "" || reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (listing_id, filename, content_type)")
	}

	ctx := c.Request.Context()
	presignedURL, objectKey, err := h.storageService.GeneratePresignedPutURL(ctx,
		userIDHex,
		reqArgs.ListingID,
		reqArgs.Filename,
		reqArgs.ContentType,
	)
	if err != nil {
		log.Printf("Error generating presigned URL for user %s, listing %s: %v", userIDHex, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}

	// Return the URL and the generated key (client needs key for confirmImageUpload)
	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

// ConfirmImageUploadArgs defines the arguments for the confirmImageUpload method.
type ConfirmImageUploadArgs struct {
	ListingID string `json:"listing_id"`
	ObjectKey string `json:"object_key"` // The key returned by getUploadURL
}

func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs ConfirmImageUploadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if reqArgs.ListingID == "" || reqArgs.ObjectKey == "" {
		return nil, NewApiError("Missing required arguments (listing_id, object_key)")
	}

	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	ctx := c.Request.Context()

	// Verify the caller owns the listing before scheduling work against it.
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("Listing not found")
		}
		log.Printf("DB error finding listing %s for image confirm: %v", reqArgs.ListingID, err)
		return nil, NewApiError("Failed to retrieve listing")
	}
	if listing.UserID != *authInfo.UserID && !authInfo.IsAdmin {
		return nil, NewApiError("Listing not found or access denied")
	}

	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{
		S3Key:     reqArgs.ObjectKey,
		ListingID: reqArgs.ListingID,
	})
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes, asynq.Queue("images")) // Use dedicated queue

	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("ERROR enqueuing image processing task for key %s, listing %s: %v", reqArgs.ObjectKey, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to schedule image processing")
	}

	log.Printf("Enqueued image processing task ID %s for key %s, listing %s", taskInfo.ID, reqArgs.ObjectKey, reqArgs.ListingID)

	return gin.H{
		"message": "Image upload confirmed, processing scheduled.",
		"task_id": taskInfo.ID,
	}, nil
}

// SendInquiryArgs defines the arguments for the sendInquiry method.
type SendInquiryArgs struct {
	ListingID string                  `json:"listing_id"` // Empty for general inquiries
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	Phone     string                  `json:"phone"`
	Message   string                  `json:"message"`
	Source    string                  `json:"source"`
	Metadata  *models.InquiryMetadata `json:"metadata"`
}

func (h *JsonApiHandler) sendInquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, _ := getAuthFromContext(c.Request.Context()) // Auth is optional for this method

	var reqArgs SendInquiryArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()

	input := services.CreateInquiryInput{
		Name:     reqArgs.Name,
		Email:    reqArgs.Email,
		Phone:    reqArgs.Phone,
		Message:  reqArgs.Message,
		Source:   reqArgs.Source,
		Metadata: reqArgs.Metadata,
	}
	if input.Metadata == nil {
		input.Metadata = &models.InquiryMetadata{
			UserAgent: c.Request.UserAgent(),
			IPAddress: c.ClientIP(),
			Referrer:  c.Request.Referer(),
		}
	}
	if authInfo != nil && authInfo.UserID != nil {
		input.InquirerUserID = authInfo.UserID
	}

	// Listing inquiries are pinned to a live listing and its owner; general
	// inquiries carry no listing reference at all.
	var listing *models.Listing
	if reqArgs.ListingID != "" {
		listingID, err := utils.ParseSixID(reqArgs.ListingID)
		if err != nil {
			return nil, NewApiError("Invalid listing_id format")
		}
		listing, err = h.listingService.FindListingByID(ctx, listingID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, NewApiError("Listing not found")
			}
			log.Printf("DB error finding listing %s for inquiry: %v", reqArgs.ListingID, err)
			return nil, NewApiError("Failed to retrieve listing")
		}
		input.ListingID = &listingID
		input.ListingOwnerID = &listing.UserID
	}

	newInquiry, err := h.inquiryService.CreateInquiry(ctx, input)
	if err != nil {
		log.Printf("Error creating inquiry (listing %q): %v", reqArgs.ListingID, err)
		return nil, apiErrorFrom(err, "Failed to save inquiry")
	}

	// Notify the listing owner; failure to enqueue never fails the request.
	if listing != nil {
		owner, ownerErr := h.userService.FindByID(ctx, listing.UserID)
		if ownerErr != nil {
			log.Printf("Error fetching owner %s for listing %s to send inquiry email: %v", listing.UserID.String(), listing.ID.String(), ownerErr)
			return newInquiry, nil
		}

		payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
			To:         owner.Email,
			TemplateID: "inquiry_received",
			Data: map[string]interface{}{
				"inquiry_id":     newInquiry.ID.String(),
				"inquirer_name":  newInquiry.InquirerName,
				"inquirer_email": newInquiry.InquirerEmail,
				"message":        newInquiry.Message,
				"listing_id":     listing.ID.String(),
				"listing_title":  listing.Title,
				"owner_name":     owner.Name,
			},
		})
		task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
		if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
			log.Printf("ERROR enqueuing inquiry email task for listing %s, inquiry %s: %v", listing.ID.String(), newInquiry.ID.String(), enqueueErr)
		}
	}

	return newInquiry, nil
}

// requireInquiryAccess fetches an inquiry and checks the caller may manage it.
// Owners of the target listing, the inquirer themselves (when the inquiry was
// sent while logged in) and admins pass; everyone else is rejected.
func (h *JsonApiHandler) requireInquiryAccess(ctx context.Context, inquiryID utils.SixID, authInfo *AuthResult) (*models.Inquiry, *ApiError) {
	inquiry, err := h.inquiryService.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			return nil, NewApiError("Inquiry not found")
		}
		log.Printf("DB error finding inquiry %s: %v", inquiryID.String(), err)
		return nil, NewApiError("Failed to retrieve inquiry")
	}
	if authInfo.IsAdmin {
		return inquiry, nil
	}
	if inquiry.ListingOwnerID != nil && *inquiry.ListingOwnerID == *authInfo.UserID {
		return inquiry, nil
	}
	if inquiry.InquirerUserID != nil && *inquiry.InquirerUserID == *authInfo.UserID {
		return inquiry, nil
	}
	return nil, NewApiError("Inquiry not found or access denied")
}

// TransitionInquiryStatusArgs defines the arguments for transitionInquiryStatus.
type TransitionInquiryStatusArgs struct {
	InquiryID string `json:"inquiry_id"`
	Status    string `json:"status"`
}

func (h *JsonApiHandler) transitionInquiryStatus(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs TransitionInquiryStatusArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	inquiryID, err := utils.ParseSixID(reqArgs.InquiryID)
	if err != nil {
		return nil, NewApiError("Invalid inquiry_id format")
	}

	ctx := c.Request.Context()
	if _, apiErr := h.requireInquiryAccess(ctx, inquiryID, authInfo); apiErr != nil {
		return nil, apiErr
	}

	updated, err := h.inquiryService.TransitionStatus(ctx, inquiryID, models.InquiryStatus(reqArgs.Status))
	if err != nil {
		log.Printf("Error transitioning inquiry %s to %s: %v", reqArgs.InquiryID, reqArgs.Status, err)
		return nil, apiErrorFrom(err, "Failed to update inquiry status")
	}
	return updated, nil
}

// RespondToInquiryArgs defines the arguments for respondToInquiry.
type RespondToInquiryArgs struct {
	InquiryID string `json:"inquiry_id"`
	Response  string `json:"response"`
}

func (h *JsonApiHandler) respondToInquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RespondToInquiryArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	inquiryID, err := utils.ParseSixID(reqArgs.InquiryID)
	if err != nil {
		return nil, NewApiError("Invalid inquiry_id format")
	}

	ctx := c.Request.Context()
	if _, apiErr := h.requireInquiryAccess(ctx, inquiryID, authInfo); apiErr != nil {
		return nil, apiErr
	}

	updated, err := h.inquiryService.RecordResponse(ctx, inquiryID, reqArgs.Response)
	if err != nil {
		log.Printf("Error recording response on inquiry %s: %v", reqArgs.InquiryID, err)
		return nil, apiErrorFrom(err, "Failed to record response")
	}

	// Let the inquirer know their question was answered.
	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         updated.InquirerEmail,
		TemplateID: "inquiry_response",
		Data: map[string]interface{}{
			"inquirer_name": updated.InquirerName,
			"response":      updated.Response,
		},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
		log.Printf("ERROR enqueuing inquiry response email for inquiry %s: %v", updated.ID.String(), enqueueErr)
	}

	return updated, nil
}

func (h *JsonApiHandler) logFollowUp(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	inquiryID, apiErr := h.parseSixIDFromArgs(args, "inquiry_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if _, apiErr := h.requireInquiryAccess(ctx, inquiryID, authInfo); apiErr != nil {
		return nil, apiErr
	}

	updated, err := h.inquiryService.LogFollowUp(ctx, inquiryID)
	if err != nil {
		log.Printf("Error logging follow-up on inquiry %s: %v", inquiryID.String(), err)
		return nil, apiErrorFrom(err, "Failed to log follow-up")
	}
	return updated, nil
}

// GetInquiryStatsArgs defines the optional arguments for getInquiryStats.
type GetInquiryStatsArgs struct {
	Days int `json:"days"`
}

func (h *JsonApiHandler) getInquiryStats(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	days := 30
	if len(args) > 0 {
		var reqArgs GetInquiryStatsArgs
		if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr == nil && reqArgs.Days > 0 {
			days = reqArgs.Days
		}
	}

	ctx := c.Request.Context()
	stats, err := h.inquiryService.GetStats(ctx, *authInfo.UserID, days)
	if err != nil {
		log.Printf("Error fetching inquiry stats for owner %s: %v", authInfo.UserID.String(), err)
		return nil, NewApiError("Failed to fetch inquiry stats")
	}
	return stats, nil
}

func (h *JsonApiHandler) listInquiriesNeedingFollowUp(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}

	ctx := c.Request.Context()
	inquiries, err := h.inquiryService.FindNeedingFollowUp(ctx, *authInfo.UserID)
	if err != nil {
		log.Printf("Error listing inquiries needing follow-up for owner %s: %v", authInfo.UserID.String(), err)
		return nil, NewApiError("Failed to list inquiries")
	}
	return inquiries, nil
}

// --- Admin methods ---

func (h *JsonApiHandler) deactivateUser(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil || !authInfo.IsAdmin {
		return nil, NewApiError("Administrator privileges required")
	}

	userID, apiErr := h.parseSixIDFromArgs(args, "user_id")
	if apiErr != nil {
		return nil, apiErr
	}
	if userID == *authInfo.UserID {
		return nil, NewApiError("Administrators cannot deactivate themselves")
	}

	ctx := c.Request.Context()
	if err := h.userService.DeactivateUser(ctx, userID); err != nil {
		log.Printf("Error deactivating user %s by admin %s: %v", userID.String(), authInfo.UserID.String(), err)
		return nil, apiErrorFrom(err, "Failed to deactivate user")
	}
	return nil, nil // Success
}

func (h *JsonApiHandler) reactivateUser(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || !authInfo.IsAdmin {
		return nil, NewApiError("Administrator privileges required")
	}

	userID, apiErr := h.parseSixIDFromArgs(args, "user_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.userService.ReactivateUser(ctx, userID); err != nil {
		log.Printf("Error reactivating user %s: %v", userID.String(), err)
		return nil, apiErrorFrom(err, "Failed to reactivate user")
	}
	return nil, nil // Success
}

// SetUserFeaturedArgs defines the arguments for setUserFeatured.
type SetUserFeaturedArgs struct {
	UserID   string `json:"user_id"`
	Featured bool   `json:"featured"`
}

func (h *JsonApiHandler) setUserFeatured(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || !authInfo.IsAdmin {
		return nil, NewApiError("Administrator privileges required")
	}

	var reqArgs SetUserFeaturedArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	userID, err := utils.ParseSixID(reqArgs.UserID)
	if err != nil {
		return nil, NewApiError("Invalid user_id format")
	}

	ctx := c.Request.Context()
	if err := h.userService.SetUserFeatured(ctx, userID, reqArgs.Featured); err != nil {
		log.Printf("Error setting featured=%t on user %s: %v", reqArgs.Featured, userID.String(), err)
		return nil, apiErrorFrom(err, "Failed to update user")
	}
	return nil, nil
}

// SetAgentRatingArgs defines the arguments for setAgentRating.
type SetAgentRatingArgs struct {
	UserID       string  `json:"user_id"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
}

func (h *JsonApiHandler) setAgentRating(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || !authInfo.IsAdmin {
		return nil, NewApiError("Administrator privileges required")
	}

	var reqArgs SetAgentRatingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	userID, err := utils.ParseSixID(reqArgs.UserID)
	if err != nil {
		return nil, NewApiError("Invalid user_id format")
	}

	ctx := c.Request.Context()
	if err := h.userService.SetAgentRating(ctx, userID, reqArgs.Rating, reqArgs.TotalReviews); err != nil {
		log.Printf("Error setting rating on user %s: %v", userID.String(), err)
		return nil, apiErrorFrom(err, "Failed to update rating")
	}
	return nil, nil
}

func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil { // 'arguments' field was not provided
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		// 'arguments' was present but wasn't a valid JSON array
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		// 'arguments' was '[]'
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	actualArgData := argArray[0] // Get the first element
	if err := json.Unmarshal(actualArgData, targetVarPtr); err != nil {
		// The first element of the array was not of the expected type
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

// PublicUser represents the data returned for a public user profile.
type PublicUser struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	Rating         float64 `json:"rating"`
	TotalReviews   int     `json:"totalReviews"`
	Experience     int     `json:"experience"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Specialization string  `json:"specialization"`
	IsFeatured     bool    `json:"isFeatured"`
	DateJoined     string  `json:"dateJoined"`
}

// GetUserByID handles GET /v1/user/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userIDHex := c.Param("id")
	userID, err := utils.ParseSixID(userIDHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.Is(err, mongo.ErrNoDocuments) || errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}

	publicUser := PublicUser{
		ID:             user.ID.String(),
		Name:           user.Name,
		Role:           string(user.Role),
		Rating:         user.Rating,
		TotalReviews:   user.TotalReviews,
		Experience:     user.Experience,
		City:           user.City,
		State:          user.State,
		Specialization: user.Specialization,
		IsFeatured:     user.IsFeatured,
		DateJoined:     user.CreatedAt.Format("2006-01-02"),
	}

	c.JSON(http.StatusOK, publicUser)
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey   = "user_id"
	userNameKey = "user_name"

	UserIDHeader   = "X-User-ID"
	UserNameHeader = "X-User-Name"
)

// RequireUser takes the learner identity forwarded by the gateway. Requests
// without one are rejected.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Set(userNameKey, strings.TrimSpace(c.GetHeader(UserNameHeader)))
		c.Next()
	}
}

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// ParseIndexParam returns -1 after writing a 400 response.
func ParseIndexParam(c *gin.Context, param string) int {
	index, err := strconv.Atoi(c.Param(param))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a non-negative integer",
		})
		return -1
	}
	return index
}

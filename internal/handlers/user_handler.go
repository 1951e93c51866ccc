package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giftledger/internal/services"
)

// UserHandler manages the users transfers are attributed to.
type UserHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, auditService: auditService}
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Email    string `json:"email" binding:"omitempty,email,max=254"`
}

// CreateUser handles POST /users.
// @Summary     Create a user
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateUserRequest true "User details"
// @Success     201 {object} models.User
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate username"
// @Router      /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	callerID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(callerID, "CREATE_USER", services.ResourceUser, user.ID, c.ClientIP(),
		map[string]interface{}{"username": user.Username})
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// DeleteUser handles DELETE /users/:id. Transfers keep the username snapshot.
// @Summary     Delete a user
// @Tags        users
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Success     204 "Deleted"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	callerID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(callerID, "DELETE_USER", services.ResourceUser, id, c.ClientIP(), nil)
	c.Status(http.StatusNoContent)
}

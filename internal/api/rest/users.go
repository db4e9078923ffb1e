package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/types"
)

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Mail     string `json:"mail" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type ChangeMailRequest struct {
	Mail string `json:"mail" binding:"required,email"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func (s *Server) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("USER_400", "Invalid request body", err.Error()))
		return
	}

	user, err := s.authService.RegisterUser(c.Request.Context(), req.Name, req.Mail, req.Password)
	if err != nil {
		// Mail is unique; a duplicate insert surfaces here
		s.logger.Warn("signup failed", zap.String("mail", req.Mail), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("USER_422", "Could not create account", nil))
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (s *Server) changeMail(c *gin.Context) {
	up, _ := auth.UserPrincipalFrom(c)

	var req ChangeMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("USER_400", "Invalid request body", err.Error()))
		return
	}

	updated, err := s.authService.ChangeMail(c.Request.Context(), up.ID, req.Mail)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("USER_422", "Could not change mail", nil))
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("USER_404", "User not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mail updated"})
}

func (s *Server) changePassword(c *gin.Context) {
	up, _ := auth.UserPrincipalFrom(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("USER_400", "Invalid request body", err.Error()))
		return
	}

	err := s.authService.ChangePassword(c.Request.Context(), up.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			c.JSON(http.StatusForbidden, types.NewErrorResponse("USER_403", "Wrong password", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("USER_500", "Failed to change password", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (s *Server) enableUser(c *gin.Context) {
	s.setUserEnabled(c, true)
}

func (s *Server) disableUser(c *gin.Context) {
	s.setUserEnabled(c, false)
}

// setUserEnabled flips the soft-delete flag. The update matches only
// non-admin rows, so targeting an admin account reports 404.
func (s *Server) setUserEnabled(c *gin.Context, enabled bool) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("USER_400", "Invalid user ID", err.Error()))
		return
	}

	updated, err := s.store.SetUserEnabled(c.Request.Context(), userID, enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("USER_500", "Failed to update user", nil))
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("USER_404", "User not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user updated", "enabled": enabled})
}

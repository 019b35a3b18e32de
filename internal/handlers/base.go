package handlers

import (
	"errors"
	"net/http"

	"threadline/internal/db"
	"threadline/internal/logger"
	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/services"
	"threadline/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("not allowed to change this comment")

// RespondError maps service errors onto status codes.
func RespondError(c *gin.Context, err error) {
	var ve *services.ValidationError
	var ie *services.IntegrityError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"field": ve.Field, "error": ve.Reason})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &ie):
		logger.Error("Comment integrity error", zap.Uint("comment_id", ie.CommentID), zap.String("reason", ie.Reason))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comment thread is corrupt"})
	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// paramID reads a positive numeric path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.StringToUint(c.Param(name))
	if !ok {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(middleware.CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/response"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/pkg/utils"
)

// uuidParam reads a UUID path parameter. A malformed id cannot name an
// existing record, so it is answered with notFound.
func uuidParam(c *gin.Context, name string, notFound *apperrors.AppError) (string, bool) {
	id := c.Param(name)
	if !utils.ValidateUUID(id) {
		response.Error(c, notFound)
		return "", false
	}
	return id, true
}

func bindError(c *gin.Context, err error) {
	response.Error(c, apperrors.ErrBadRequest.WithDetails(err.Error()))
}

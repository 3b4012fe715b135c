package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/middleware"
)

type MeHandler struct{}

func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// Get godoc
// @Summary 取得目前使用者
// @Description 取得 Token 中的使用者身分
// @Tags 使用者
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.IdentityResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/me [get]
func (h *MeHandler) Get(c *gin.Context) {
	response.Success(c, response.NewIdentityResponse(middleware.GetIdentity(c)))
}

package handler

import (
	"net/http"

	"chag-go/internal/service"
	"chag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChagHandler 负责处理 GPT-2 聊天请求。
type ChagHandler struct {
	chagService service.ChagService
}

// NewChagHandler 创建一个新的 ChagHandler 实例。
func NewChagHandler(chagService service.ChagService) *ChagHandler {
	return &ChagHandler{chagService: chagService}
}

// ChagRequest 定义了 /chag 的请求体结构，两个字段均可省略。
type ChagRequest struct {
	UserLabel string `json:"user_label"`
	Message   string `json:"message"`
}

// Chag 生成一条聊天回复。
func (h *ChagHandler) Chag(c *gin.Context) {
	var req ChagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[ChagHandler] 请求体解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	log.Infof("[ChagHandler] 收到聊天请求, user_label: %q", req.UserLabel)

	response, err := h.chagService.Respond(c.Request.Context(), req.UserLabel, req.Message)
	if err != nil {
		log.Errorf("[ChagHandler] 生成回复失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate a response"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": response})
}

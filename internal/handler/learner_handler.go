// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"chag-go/internal/service"
	"chag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// LearnerHandler 负责处理在线学习模型的 API 请求。
type LearnerHandler struct {
	learnerService service.LearnerService
}

// NewLearnerHandler 创建一个新的 LearnerHandler 实例。
func NewLearnerHandler(learnerService service.LearnerService) *LearnerHandler {
	return &LearnerHandler{learnerService: learnerService}
}

// LearnRequest 定义了 /learn 的请求体结构。
type LearnRequest struct {
	Message string `json:"message"`
}

// Learn 接收一条消息并加入训练语料。
func (h *LearnerHandler) Learn(c *gin.Context) {
	var req LearnRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		log.Warnf("[LearnerHandler] 收到无效的学习请求, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "No message provided"})
		return
	}

	result, err := h.learnerService.AddMessage(c.Request.Context(), req.Message)
	if err != nil {
		log.Errorf("[LearnerHandler] 添加消息失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": result})
}

// Generate 根据种子文本续写。
func (h *LearnerHandler) Generate(c *gin.Context) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "No JSON data received"})
		return
	}
	seed, _ := data["seed_text"].(string)
	if seed == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "No seed text provided"})
		return
	}

	text, err := h.learnerService.Generate(c.Request.Context(), seed)
	if err != nil {
		log.Errorf("[LearnerHandler] 生成文本失败, seed: %q, error: %v", seed, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	log.Infof("[LearnerHandler] 生成成功, seed: %q", seed)
	c.JSON(http.StatusOK, gin.H{"status": "success", "generated_text": text})
}

// Stats 返回学习器的运行统计。
func (h *LearnerHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": h.learnerService.Stats(c.Request.Context())})
}

// Healthz 用于存活探测。
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

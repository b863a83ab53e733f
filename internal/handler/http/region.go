package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"japan-tracker/internal/domain"
)

// ListRegions 处理 GET /api/regions，返回 47 个都道府县
func ListRegions(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{
		"total":   domain.TotalRegions,
		"regions": domain.AllRegions(),
	})
}

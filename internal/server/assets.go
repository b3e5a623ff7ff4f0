package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	assetdomain "github.com/stackdesk/stackdesk/internal/asset/domain"
)

func (s *Server) ListAssets(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req assetdomain.ListAssetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenant.ID

	assets, err := s.assetSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (s *Server) CreateAsset(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req assetdomain.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenant.ID

	asset, err := s.assetSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (s *Server) GetAsset(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asset, err := s.assetSvc.Get(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (s *Server) UpdateAsset(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req assetdomain.UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asset, err := s.assetSvc.Update(c.Request.Context(), tenant.ID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

type assignAssetRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) AssignAsset(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req assignAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid", "invalid user id"))
		return
	}

	asset, err := s.assetSvc.Assign(c.Request.Context(), tenant.ID, id, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (s *Server) RetireAsset(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asset, err := s.assetSvc.Retire(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (s *Server) DeleteAsset(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.assetSvc.Delete(c.Request.Context(), tenant.ID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

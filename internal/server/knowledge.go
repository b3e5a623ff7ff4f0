package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	kbdomain "github.com/stackdesk/stackdesk/internal/knowledge/domain"
)

func (s *Server) ListArticles(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req kbdomain.ListArticlesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenant.ID

	articles, err := s.kbSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (s *Server) CreateArticle(c *gin.Context) {
	user, tenant, ok := s.principal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req kbdomain.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenant.ID
	req.AuthorID = &user.ID

	article, err := s.kbSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (s *Server) GetArticle(c *gin.Context) {
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

	article, err := s.kbSvc.Get(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) UpdateArticle(c *gin.Context) {
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

	var req kbdomain.UpdateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	article, err := s.kbSvc.Update(c.Request.Context(), tenant.ID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) PublishArticle(c *gin.Context) {
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

	article, err := s.kbSvc.Publish(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) ArchiveArticle(c *gin.Context) {
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

	article, err := s.kbSvc.Archive(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// PortalArticle serves a published article to self-service users by
// slug. Drafts and archived articles stay hidden.
func (s *Server) PortalArticle(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	article, err := s.kbSvc.GetBySlug(c.Request.Context(), tenant.ID, c.Param("slug"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

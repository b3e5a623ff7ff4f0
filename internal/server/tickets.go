package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	ticketdomain "github.com/stackdesk/stackdesk/internal/ticket/domain"
)

func (s *Server) ListTickets(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req ticketdomain.ListTicketsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenant.ID

	tickets, err := s.ticketSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) CreateTicket(c *gin.Context) {
	user, tenant, ok := s.principal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ticketdomain.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenant.ID
	req.RequesterID = user.ID

	// Self-service callers always file through the portal source.
	if app, exists := c.Get(contextAppKey); exists {
		if app == tenantdomain.AppSelfService {
			req.Source = ticketdomain.SourceSelfService
		}
	}

	ticket, err := s.ticketSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (s *Server) GetTicket(c *gin.Context) {
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

	ticket, err := s.ticketSvc.Get(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) UpdateTicket(c *gin.Context) {
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

	var req ticketdomain.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ticket, err := s.ticketSvc.Update(c.Request.Context(), tenant.ID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type assignTicketRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

func (s *Server) AssignTicket(c *gin.Context) {
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

	var req assignTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assigneeID, err := snowflake.ParseString(strings.TrimSpace(req.AssigneeID))
	if err != nil {
		AbortWithError(c, newValidationError("assignee_id", "invalid", "invalid assignee id"))
		return
	}

	ticket, err := s.ticketSvc.Assign(c.Request.Context(), tenant.ID, id, assigneeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) CloseTicket(c *gin.Context) {
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

	ticket, err := s.ticketSvc.Close(c.Request.Context(), tenant.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// MyTickets lists the caller's own tickets on the self-service portal.
func (s *Server) MyTickets(c *gin.Context) {
	user, tenant, ok := s.principal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	tickets, err := s.ticketSvc.List(c.Request.Context(), ticketdomain.ListTicketsRequest{
		TenantID:  tenant.ID,
		Requester: user.ID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

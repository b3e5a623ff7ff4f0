package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	assetdomain "github.com/stackdesk/stackdesk/internal/asset/domain"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/authorization"
	kbdomain "github.com/stackdesk/stackdesk/internal/knowledge/domain"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	ticketdomain "github.com/stackdesk/stackdesk/internal/ticket/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    "invalid_credentials",
			Message: "invalid login credentials",
		}
	case errors.Is(err, authdomain.ErrEmailNotConfirmed):
		return http.StatusForbidden, errorPayload{
			Type:    "email_not_confirmed",
			Message: "email not confirmed",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, authdomain.ErrSessionNotFound):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isDomainValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "request", Code: "invalid", Message: err.Error()},
			},
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, authdomain.ErrIdentityExists),
		errors.Is(err, authdomain.ErrLastIdentity),
		errors.Is(err, tenantdomain.ErrSlugTaken),
		errors.Is(err, assetdomain.ErrTagTaken),
		errors.Is(err, ticketdomain.ErrTicketClosed),
		errors.Is(err, assetdomain.ErrAssetRetired),
		errors.Is(err, kbdomain.ErrSlugTaken):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, authdomain.ErrIdentityNotFound),
		errors.Is(err, tenantdomain.ErrTenantNotFound),
		errors.Is(err, tenantdomain.ErrProfileNotFound),
		errors.Is(err, tenantdomain.ErrSettingsNotFound),
		errors.Is(err, accessdomain.ErrOverrideNotFound),
		errors.Is(err, ticketdomain.ErrTicketNotFound),
		errors.Is(err, assetdomain.ErrAssetNotFound),
		errors.Is(err, kbdomain.ErrArticleNotFound),
		errors.Is(err, kbdomain.ErrNotPublished):
		return true
	}
	return false
}

func isDomainValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, tenantdomain.ErrInvalidName),
		errors.Is(err, accessdomain.ErrUnknownModule),
		errors.Is(err, accessdomain.ErrUnknownEffect),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, ticketdomain.ErrInvalidSubject),
		errors.Is(err, ticketdomain.ErrInvalidStatus),
		errors.Is(err, ticketdomain.ErrInvalidPriority),
		errors.Is(err, ticketdomain.ErrInvalidRequester),
		errors.Is(err, assetdomain.ErrInvalidTag),
		errors.Is(err, assetdomain.ErrInvalidStatus),
		errors.Is(err, kbdomain.ErrInvalidTitle):
		return true
	}
	return false
}

// classifyErrorForLog feeds the request logger a stable (type, code)
// pair without leaking raw error strings.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= 500 {
		return "internal", payload.Type
	}
	return "domain", payload.Type
}

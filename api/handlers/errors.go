package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/tracing"
)

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mperrors.ErrMailboxNotFound), errors.Is(err, mperrors.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, mperrors.ErrMailboxExists), errors.Is(err, mperrors.ErrMailboxInUse), errors.Is(err, mperrors.ErrFetchInProgress),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, mperrors.ErrUnknownSchema):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, span opentracing.Span, err error) {
	tracing.TraceErr(span, err)
	status := statusFor(err)
	c.JSON(status, gin.H{"error": errors.Cause(err).Error(), "detail": err.Error()})
}

func badRequest(c *gin.Context, span opentracing.Span, err error) {
	tracing.TraceErr(span, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

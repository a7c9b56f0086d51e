package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/falconsupport/api/internal/auth"
	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/guide"
	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/falconsupport/api/internal/validator"
	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto status codes. Anything unrecognised
// is logged and reported as a 500 with the fallback message.
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	msg := fallback

	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, identity.ErrUserNotFound), errors.Is(err, blob.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, identity.ErrEmailTaken):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, validator.ErrInvalid),
		errors.Is(err, ticket.ErrAttachmentMissing),
		errors.Is(err, ticket.ErrKindImmutable),
		errors.Is(err, ticket.ErrEmptyComment),
		errors.Is(err, guide.ErrInvalidDocument),
		errors.Is(err, guide.ErrNotMarkdown),
		errors.Is(err, identity.ErrDomainNotAllowed),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrLongPassword),
		errors.Is(err, blob.ErrInvalidKey):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, guide.ErrTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, identity.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, identity.ErrEmailNotVerified):
		status, msg = http.StatusForbidden, err.Error()
	default:
		log.Printf("%s: %v", fallback, err)
	}

	c.JSON(status, gin.H{"error": msg})
}

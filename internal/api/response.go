package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/prepdeck/internal/activity"
	"github.com/abhisek/prepdeck/internal/app"
	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/guidance"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func abortError(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, activity.ErrInvalid),
		errors.Is(err, flashcard.ErrInvalidCard),
		errors.Is(err, flashcard.ErrUnknownCard):
		return http.StatusBadRequest
	case errors.Is(err, flashcard.ErrCardNotFound),
		errors.Is(err, guidance.ErrUnknownTip):
		return http.StatusNotFound
	case errors.Is(err, flashcard.ErrDuplicateCard),
		errors.Is(err, flashcard.ErrInvalidTransition),
		errors.Is(err, app.ErrNoStudySession):
		return http.StatusConflict
	case errors.Is(err, flashcard.ErrNoCards):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrNoActivityLog):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, message string, err error) {
	abortError(c, statusFor(err), message, err)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/orator/internal/apperr"
	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/store"
	"github.com/verte-zerg/orator/internal/transcribe"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// classify maps domain errors onto application errors.
func classify(err error) *apperr.Error {
	var ae *apperr.Error
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &verrs):
		return apperr.Validation("invalid request", describeValidation(verrs))
	case errors.Is(err, game.ErrEmptyKey):
		return apperr.Unauthorized("Access key required").WithCause(err)
	case errors.Is(err, game.ErrUnknownUser), errors.Is(err, store.ErrInactive):
		return apperr.Unauthorized("Invalid access key").WithCause(err)
	case errors.Is(err, game.ErrInvalidProgress):
		return apperr.Validation("Missing required fields: sessionKey, levelId, success, score", "").WithCause(err)
	case errors.Is(err, game.ErrNoActiveSession):
		return apperr.NotFound("active session").WithCause(err)
	case errors.Is(err, game.ErrUnknownLevel):
		return apperr.NotFound("level").WithCause(err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("resource").WithCause(err)
	case errors.Is(err, transcribe.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout("Transcription timed out").WithCause(err)
	case errors.Is(err, transcribe.ErrNoAudio):
		return apperr.BadRequest("No audio file provided").WithCause(err)
	case errors.Is(err, transcribe.ErrEmptyTranscript):
		return apperr.Unavailable("No transcription text received").WithCause(err)
	default:
		return apperr.As(err)
	}
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (s *Server) fail(c *gin.Context, err error) {
	ae := classify(err)
	if ae.Status >= 500 {
		s.log.Error("request failed", "path", c.Request.URL.Path, "code", ae.Code, "error", err)
	}
	c.AbortWithStatusJSON(ae.Status, errorBody{
		Error:   ae.Message,
		Code:    ae.Code,
		Details: ae.Details,
	})
}

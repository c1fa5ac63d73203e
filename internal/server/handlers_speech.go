package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/orator/internal/apperr"
	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/model"
	"github.com/verte-zerg/orator/internal/scoring"
	"github.com/verte-zerg/orator/internal/transcribe"
)

type speechResponse struct {
	scoring.Result
	Score    int    `json:"score"`
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
	// Record is set when the attempt was saved as progress.
	Record *model.ProgressRecord `json:"record,omitempty"`
}

func (s *Server) analyzeSpeech(c *gin.Context) {
	if s.stt == nil {
		s.fail(c, apperr.Unavailable("Speech transcription is not configured"))
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		s.fail(c, apperr.BadRequest("No audio file provided"))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !transcribe.IsAudio(contentType) {
		s.fail(c, apperr.BadRequest("Invalid file type. Expected audio file."))
		return
	}
	if fh.Size > s.cfg.MaxAudioBytes {
		s.fail(c, apperr.BadRequest("Audio file is too large"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, apperr.BadRequest("Unreadable audio file"))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxAudioBytes))
	_ = f.Close()
	if err != nil {
		s.fail(c, apperr.BadRequest("Unreadable audio file"))
		return
	}

	levelID, levelErr := strconv.Atoi(c.PostForm("levelId"))
	sessionKey := strings.TrimSpace(c.PostForm("sessionKey"))
	expected := c.PostForm("expectedText")
	if expected == "" && levelErr == nil {
		if lvl, ok := levels.ByID(levelID); ok {
			expected = lvl.Prompt
		}
	}
	language := strings.TrimSpace(c.PostForm("language"))
	if language == "" {
		language = transcribe.DefaultLanguage
	}
	duration, err := strconv.ParseFloat(c.PostForm("duration"), 64)
	if err != nil {
		duration = 0
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.SpeechTimeout)
	defer cancel()
	start := time.Now()
	tr, err := s.stt.Transcribe(ctx, transcribe.Audio{Data: data, ContentType: contentType, Language: language})
	s.metrics.observeTranscription(time.Since(start), err)
	if err != nil {
		s.fail(c, err)
		return
	}

	if sessionKey != "" && levelErr == nil {
		s.saveSpeechAttempt(c, game.AttemptInput{
			SessionKey:      sessionKey,
			LevelID:         levelID,
			Transcript:      tr.Text,
			DurationSeconds: duration,
			Confidence:      tr.Confidence,
			Interview:       interviewFromForm(c),
		})
		return
	}

	res := scoring.Score(tr.Text, duration, expected).WithExternalConfidence(tr.Confidence)
	score := scoring.DisplayScore(res.Confidence)
	c.JSON(http.StatusOK, speechResponse{
		Result:   res,
		Score:    score,
		Passed:   scoring.Passed(score),
		Feedback: scoring.Feedback(res),
	})
}

// saveSpeechAttempt scores a transcript against its level and stores it as
// progress for the signed-in user.
func (s *Server) saveSpeechAttempt(c *gin.Context, in game.AttemptInput) {
	user := mustUser(c)
	res, err := s.svc.Attempt(c.Request.Context(), user.AccessKey, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.observeAttempt(res.Success)
	rec := res.Record
	c.JSON(http.StatusOK, speechResponse{
		Result:   res.Score,
		Score:    res.Display,
		Passed:   res.Success,
		Feedback: res.Feedback,
		Record:   &rec,
	})
}

func interviewFromForm(c *gin.Context) *levels.Interview {
	iv := levels.Interview{
		Type: strings.TrimSpace(c.PostForm("interviewType")),
		Role: strings.TrimSpace(c.PostForm("jobRole")),
	}
	if iv.Type == "" && iv.Role == "" {
		return nil
	}
	return &iv
}

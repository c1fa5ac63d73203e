package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/apperr"
	"github.com/verte-zerg/orator/internal/model"
)

const cookieMaxAge = 365 * 24 * 60 * 60

type validateRequest struct {
	AccessKey string `json:"accessKey" binding:"required"`
}

type publicUser struct {
	ID         int64  `json:"id"`
	AccessKey  string `json:"access_key"`
	CreatedAt  string `json:"created_at"`
	LastActive string `json:"last_active"`
}

func (s *Server) validateAccessKey(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.AccessKey) == "" {
		s.fail(c, apperr.BadRequest("Access key is required"))
		return
	}
	u, err := s.svc.Authenticate(c.Request.Context(), req.AccessKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessKeyCookie, u.AccessKey, cookieMaxAge, "/", "", s.cfg.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": publicUser{
			ID:         u.ID,
			AccessKey:  u.AccessKey,
			CreatedAt:  u.CreatedAt.UTC().Format(jsTimeLayout),
			LastActive: u.LastActive.UTC().Format(jsTimeLayout),
		},
	})
}

// jsTimeLayout matches Date.prototype.toISOString.
const jsTimeLayout = "2006-01-02T15:04:05.000Z"

func (s *Server) userData(c *gin.Context) {
	data, err := s.svc.UserData(c.Request.Context(), mustUser(c).AccessKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

type progressRequest struct {
	SessionKey      string   `json:"sessionKey" binding:"required"`
	LevelID         *int     `json:"levelId" binding:"required,min=1"`
	Success         *bool    `json:"success" binding:"required"`
	Score           *int     `json:"score" binding:"required,min=0,max=100"`
	Transcription   *string  `json:"transcription"`
	Accuracy        *float64 `json:"accuracy" binding:"omitempty,min=0,max=1"`
	Fluency         *float64 `json:"fluency" binding:"omitempty,min=0,max=1"`
	WordsPerMinute  *float64 `json:"wordsPerMinute" binding:"omitempty,min=0"`
	DurationSeconds *float64 `json:"durationSeconds" binding:"omitempty,min=0"`
	CoinsEarned     int      `json:"coinsEarned" binding:"min=0"`
	XPEarned        int      `json:"xpEarned" binding:"min=0"`
}

func (s *Server) saveProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.Validation("Missing required fields: sessionKey, levelId, success, score", bindDetails(err)))
		return
	}
	rec, err := s.svc.SaveProgress(c.Request.Context(), mustUser(c).AccessKey, model.NewProgress{
		SessionKey:      req.SessionKey,
		LevelID:         *req.LevelID,
		Success:         *req.Success,
		Score:           *req.Score,
		Transcription:   req.Transcription,
		Accuracy:        req.Accuracy,
		Fluency:         req.Fluency,
		WordsPerMinute:  req.WordsPerMinute,
		DurationSeconds: req.DurationSeconds,
		CoinsEarned:     req.CoinsEarned,
		XPEarned:        req.XPEarned,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.observeAttempt(rec.Success)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Progress saved successfully",
		"data":    rec,
	})
}

func (s *Server) progress(c *gin.Context) {
	key := mustUser(c).AccessKey
	if raw := c.Query("levelId"); raw != "" {
		levelID, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(c, apperr.Validation("invalid levelId", raw))
			return
		}
		records, err := s.svc.LevelProgress(c.Request.Context(), key, levelID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if records == nil {
			records = []model.ProgressRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": records})
		return
	}

	data, err := s.svc.UserData(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"completedLevels": data.CompletedLevels,
			"currentLevel":    data.CurrentLevel,
		},
	})
}

type sessionRequest struct {
	Action      string          `json:"action" binding:"required,oneof=start end"`
	SessionData json.RawMessage `json:"sessionData"`
}

type sessionEndRequest struct {
	TotalTimeSeconds *int `json:"totalTimeSeconds" binding:"required,min=0"`
	LevelsAttempted  *int `json:"levelsAttempted" binding:"required,min=0"`
	LevelsCompleted  *int `json:"levelsCompleted" binding:"required,min=0"`
	TotalCoinsEarned *int `json:"totalCoinsEarned" binding:"required,min=0"`
	TotalXPEarned    *int `json:"totalXpEarned" binding:"required,min=0"`
	CurrentLevel     *int `json:"currentLevel" binding:"required,min=0"`
}

func (s *Server) session(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.Validation(`Invalid action. Use "start" or "end"`, bindDetails(err)))
		return
	}
	key := mustUser(c).AccessKey

	if req.Action == "start" {
		sess, err := s.svc.StartSession(c.Request.Context(), key)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": sess})
		return
	}

	var end sessionEndRequest
	if len(req.SessionData) == 0 || json.Unmarshal(req.SessionData, &end) != nil {
		s.fail(c, apperr.Validation("Missing required session data fields", ""))
		return
	}
	if err := validate(&end); err != nil {
		s.fail(c, apperr.Validation("Missing required session data fields", bindDetails(err)))
		return
	}
	sess, err := s.svc.EndSession(c.Request.Context(), key, model.SessionEnd{
		TotalTimeSeconds: *end.TotalTimeSeconds,
		LevelsAttempted:  *end.LevelsAttempted,
		LevelsCompleted:  *end.LevelsCompleted,
		TotalCoinsEarned: *end.TotalCoinsEarned,
		TotalXPEarned:    *end.TotalXPEarned,
		CurrentLevel:     *end.CurrentLevel,
		Data:             req.SessionData,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session ended successfully",
		"data":    sess,
	})
}

func (s *Server) userAnalytics(c *gin.Context) {
	opts := analytics.Options{
		RecentActivityLimit: queryInt(c, "recentActivityLimit", analytics.DefaultRecentActivityLimit),
		SessionLimit:        queryInt(c, "sessionLimit", analytics.DefaultSessionLimit),
		IncludeTrends:       c.Query("includeTrends") != "false",
	}
	view, err := s.svc.Analytics(c.Request.Context(), mustUser(c).AccessKey, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": view})
}

// queryInt parses an integer query parameter, returning def when it is
// missing or malformed.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func validate(v any) error {
	return binding.Validator.ValidateStruct(v)
}

func bindDetails(err error) string {
	if ae := classify(err); ae.Code == apperr.CodeValidation {
		return ae.Details
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "malformed JSON"
	}
	return err.Error()
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/store"
)

const defaultLeaderboardLimit = 10

var sortLabels = map[string]string{
	store.SortXP:     "Total XP",
	store.SortCoins:  "Total Coins",
	store.SortLevels: "Levels Completed",
	store.SortStreak: "Best Streak",
}

var timeframeLabels = map[string]string{
	game.TimeframeAll:   "All Time",
	game.TimeframeMonth: "Last 30 Days",
	game.TimeframeWeek:  "Last 7 Days",
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}

func (s *Server) publicInfo(c *gin.Context) {
	base := baseURL(c)
	c.JSON(http.StatusOK, gin.H{
		"name":        "Orator Public API",
		"version":     "1.0.0",
		"description": "Public API for accessing game data, statistics and leaderboards",
		"endpoints": gin.H{
			"stats": gin.H{
				"url":         base + "/api/public/stats",
				"description": "Overall game statistics and analytics",
				"parameters":  gin.H{},
			},
			"levels": gin.H{
				"url":         base + "/api/public/levels",
				"description": "Information about all available game levels",
				"parameters": gin.H{
					"difficulty":        "Filter by difficulty (easy/medium/hard)",
					"type":              "Filter by type (basic/intermediate/advanced/boss)",
					"includeBossLevels": "Include/exclude boss levels (true/false, default: true)",
				},
			},
			"leaderboard": gin.H{
				"url":         base + "/api/public/leaderboard",
				"description": "Top players leaderboard",
				"parameters": gin.H{
					"limit":     "Number of results to return (max 50, default: 10)",
					"sortBy":    "Sort criteria (xp/coins/levels/streak, default: xp)",
					"timeframe": "Time period (all/month/week, default: all)",
				},
			},
		},
		"usage": gin.H{
			"authentication": "No authentication required for public endpoints",
			"content_type":   "application/json",
		},
	})
}

func (s *Server) publicStats(c *gin.Context) {
	stats, err := s.svc.PublicStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) publicLevels(c *gin.Context) {
	f := levels.Filter{
		Difficulty:  c.Query("difficulty"),
		Type:        c.Query("type"),
		IncludeBoss: c.Query("includeBossLevels") != "false",
	}
	selected := levels.Select(f)
	c.JSON(http.StatusOK, gin.H{
		"total_levels":   levels.Count(),
		"filtered_count": len(selected),
		"filters_applied": gin.H{
			"difficulty":          orAll(f.Difficulty),
			"type":                orAll(f.Type),
			"include_boss_levels": f.IncludeBoss,
		},
		"levels": selected,
	})
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

func (s *Server) leaderboard(c *gin.Context) {
	limit := queryInt(c, "limit", defaultLeaderboardLimit)
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, store.MaxLeaderboardLimit)

	sortBy := c.DefaultQuery("sortBy", store.SortXP)
	if _, ok := sortLabels[sortBy]; !ok {
		sortBy = store.SortXP
	}
	timeframe := c.DefaultQuery("timeframe", game.TimeframeAll)
	if _, ok := timeframeLabels[timeframe]; !ok {
		timeframe = game.TimeframeAll
	}

	entries, err := s.svc.Leaderboard(c.Request.Context(), game.LeaderboardRequest{
		SortBy:    sortBy,
		Timeframe: timeframe,
		Limit:     limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metadata": gin.H{
			"sort_by":         sortBy,
			"sort_label":      sortLabels[sortBy],
			"timeframe":       timeframe,
			"timeframe_label": timeframeLabels[timeframe],
			"limit":           limit,
			"total_results":   len(entries),
		},
		"leaderboard": entries,
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/orator/internal/config"
	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/scoring"
	"github.com/verte-zerg/orator/internal/stats"
	"github.com/verte-zerg/orator/internal/store"
	"github.com/verte-zerg/orator/internal/transcribe"
)

var (
	scoreLevel     int
	scoreDuration  float64
	scoreAudio     string
	scoreKey       string
	scoreInterview string
	scoreRole      string

	levelsDifficulty string
	levelsType       string
	levelsNoBoss     bool

	boardSort      string
	boardTimeframe string
	boardLimit     int
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [text]",
		Short: "Score a spoken answer against a level",
		RunE:  runScoreCmd,
	}
	cmd.Flags().IntVar(&scoreLevel, "level", 1, "level id")
	cmd.Flags().Float64Var(&scoreDuration, "duration", 0, "speaking time in seconds")
	cmd.Flags().StringVar(&scoreAudio, "audio", "", "audio file to transcribe instead of text")
	cmd.Flags().StringVar(&scoreKey, "key", "", "access key; when set the attempt is saved")
	cmd.Flags().StringVar(&scoreInterview, "interview-type", "", "interview type for interview levels")
	cmd.Flags().StringVar(&scoreRole, "role", "", "job role for interview levels")
	return cmd
}

func runScoreCmd(cmd *cobra.Command, args []string) error {
	lvl, ok := levels.ByID(scoreLevel)
	if !ok {
		return fmt.Errorf("unknown level %d (1-%d)", scoreLevel, levels.Count())
	}
	if scoreDuration < 0 {
		return fmt.Errorf("--duration must be >= 0")
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && scoreAudio == "" {
		return fmt.Errorf("pass the spoken text or --audio")
	}
	var interview *levels.Interview
	if scoreInterview != "" || scoreRole != "" {
		interview = &levels.Interview{Type: scoreInterview, Role: scoreRole}
	}

	settings, err := loadSettings(cmd, nil)
	if err != nil {
		return err
	}
	var confidence *float64
	if scoreAudio != "" {
		transcript, err := transcribeFile(cmd.Context(), settings, scoreAudio)
		if err != nil {
			return err
		}
		text = transcript.Text
		confidence = transcript.Confidence
	}

	out := cmd.OutOrStdout()
	if scoreKey == "" {
		res := scoring.Score(text, scoreDuration, lvl.ExpectedText(interview)).WithExternalConfidence(confidence)
		display := scoring.DisplayScore(res.Confidence)
		return printScore(out, lvl, res, display, scoring.Passed(display), scoring.Feedback(res))
	}

	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer closeStore(st)
	svc := game.New(st, nil)
	ctx := context.Background()
	if _, err := svc.Authenticate(ctx, scoreKey); err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}
	result, err := svc.Attempt(ctx, scoreKey, game.AttemptInput{
		SessionKey:      store.NewSessionKey(),
		LevelID:         lvl.ID,
		Transcript:      text,
		DurationSeconds: scoreDuration,
		Confidence:      confidence,
		Interview:       interview,
	})
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return printScore(out, lvl, result.Score, result.Display, result.Success, result.Feedback)
}

func transcribeFile(ctx context.Context, settings config.Settings, path string) (transcribe.Transcript, error) {
	stt, err := newProvider(settings)
	if err != nil {
		return transcribe.Transcript{}, err
	}
	if stt == nil {
		return transcribe.Transcript{}, fmt.Errorf("no transcription provider configured; set %s or %s",
			config.EnvAssemblyAIKey, config.EnvOpenAIKey)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("failed to read audio: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "audio/webm"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, settings.SpeechTimeout)
	defer cancel()
	transcript, err := stt.Transcribe(ctx, transcribe.Audio{Data: data, ContentType: contentType})
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return transcript, nil
}

func printScore(w io.Writer, lvl levels.Level, res scoring.Result, display int, passed bool, feedback string) error {
	verdict := "not passed"
	if passed {
		verdict = "passed"
	}
	lines := []string{
		fmt.Sprintf("Level %d: %s", lvl.ID, lvl.Name),
		fmt.Sprintf("Transcript: %s", res.Transcription),
		fmt.Sprintf("Score: %d (%s)", display, verdict),
		fmt.Sprintf("Accuracy: %.1f%%  Fluency: %.1f%%  Speed: %.1f%%", res.Accuracy*100, res.Fluency*100, res.Speed*100),
		fmt.Sprintf("Words: %d  WPM: %.1f  Disfluencies: %d", res.WordCount, res.WordsPerMinute, res.Disfluencies),
		feedback,
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newLevelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List the level catalog",
		Args:  cobra.NoArgs,
		RunE:  runLevelsCmd,
	}
	cmd.Flags().StringVar(&levelsDifficulty, "difficulty", "", "easy, medium or hard")
	cmd.Flags().StringVar(&levelsType, "type", "", "level type")
	cmd.Flags().BoolVar(&levelsNoBoss, "no-boss", false, "hide boss levels")
	return cmd
}

func runLevelsCmd(cmd *cobra.Command, _ []string) error {
	list := levels.Select(levels.Filter{
		Difficulty:  strings.ToLower(strings.TrimSpace(levelsDifficulty)),
		Type:        strings.ToLower(strings.TrimSpace(levelsType)),
		IncludeBoss: !levelsNoBoss,
	})
	rows := make([][]string, 0, len(list))
	for _, lvl := range list {
		boss := ""
		if lvl.Boss {
			boss = "boss"
		}
		rows = append(rows, []string{
			strconv.Itoa(lvl.ID), lvl.Name, lvl.Difficulty, lvl.Type, boss,
			strconv.Itoa(lvl.RewardCoins), strconv.Itoa(lvl.RewardXP), strconv.Itoa(lvl.TimeLimit) + "s",
		})
	}
	return writeLines(cmd.OutOrStdout(), stats.FormatTable(
		[]string{"ID", "Name", "Difficulty", "Type", "", "Coins", "XP", "Time"},
		rows, map[int]bool{0: true, 5: true, 6: true, 7: true}))
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the public leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().StringVar(&boardSort, "sort", store.SortXP, "xp, coins, levels or streak")
	cmd.Flags().StringVar(&boardTimeframe, "timeframe", game.TimeframeAll, "all, month or week")
	cmd.Flags().IntVar(&boardLimit, "limit", 10, "rows to show")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	return withService(cmd, nil, func(_ config.Settings, _ *store.Store, svc *game.Service) error {
		entries, err := svc.Leaderboard(context.Background(), game.LeaderboardRequest{
			SortBy:    boardSort,
			Timeframe: boardTimeframe,
			Limit:     boardLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to load leaderboard: %w", err)
		}
		if len(entries) == 0 {
			logErrln("No players yet.")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				strconv.Itoa(e.Rank), e.UserID,
				strconv.Itoa(e.Stats.CurrentLevel), strconv.Itoa(e.Stats.TotalXP),
				strconv.Itoa(e.Stats.TotalCoins), strconv.Itoa(e.Stats.CurrentStreak),
				fmt.Sprintf("%.1f", e.Stats.AverageScore),
			})
		}
		return writeLines(cmd.OutOrStdout(), stats.FormatTable(
			[]string{"#", "Player", "Level", "XP", "Coins", "Streak", "Avg"},
			rows, map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true, 6: true}))
	})
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage access keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <key>",
		Short: "Register an access key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, nil, func(_ config.Settings, st *store.Store, _ *game.Service) error {
				u, err := st.AddAccessKey(context.Background(), strings.TrimSpace(args[0]))
				if errors.Is(err, store.ErrKeyExists) {
					return fmt.Errorf("access key already exists")
				}
				if err != nil {
					return err
				}
				logErrf("Added %s\n", store.AnonymousID(u.ID))
				return nil
			})
		},
	})
	cmd.AddCommand(setActiveCmd("disable", "Disable an access key", false))
	cmd.AddCommand(setActiveCmd("enable", "Re-enable an access key", true))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List access keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, nil, func(_ config.Settings, st *store.Store, _ *game.Service) error {
				users, err := st.ListUsers(context.Background())
				if err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					status := "active"
					if !u.IsActive {
						status = "disabled"
					}
					rows = append(rows, []string{
						store.AnonymousID(u.ID), u.AccessKey, status,
						u.CreatedAt.Local().Format(time.DateOnly), u.LastActive.Local().Format(time.DateTime),
					})
				}
				return writeLines(cmd.OutOrStdout(), stats.FormatTable(
					[]string{"Player", "Key", "Status", "Joined", "Last active"}, rows, nil))
			})
		},
	})
	return cmd
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <key>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, nil, func(_ config.Settings, st *store.Store, _ *game.Service) error {
				err := st.SetUserActive(context.Background(), strings.TrimSpace(args[0]), active)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("unknown access key")
				}
				return err
			})
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

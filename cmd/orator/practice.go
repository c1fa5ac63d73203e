package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/config"
	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/stats"
	"github.com/verte-zerg/orator/internal/statsui"
	"github.com/verte-zerg/orator/internal/store"
	"github.com/verte-zerg/orator/internal/tui"
)

const defaultCurveWindow = 7

var (
	practiceKey   string
	practiceLevel int

	statsKey         string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsRecent      int
	statsSessions    int
	statsPlain       bool
)

func newPracticeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Practice levels in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runPracticeCmd,
	}
	cmd.Flags().StringVar(&practiceKey, "key", "", "access key")
	cmd.Flags().IntVar(&practiceLevel, "level", 0, "level to start at (default: next uncompleted level)")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	explicitLevel := false
	return withService(cmd, func(fc *config.FileConfig) {
		overrideString(cmd, "key", practiceKey, &fc.Practice.Key)
		overrideInt(cmd, "level", practiceLevel, &fc.Practice.Level)
		explicitLevel = fc.Practice.Level != nil
	}, func(settings config.Settings, _ *store.Store, svc *game.Service) error {
		key, err := requireKey(settings.PracticeKey)
		if err != nil {
			return err
		}
		ctx := context.Background()
		if _, err := svc.Authenticate(ctx, key); err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}

		level := settings.PracticeLevel
		if !explicitLevel {
			data, err := svc.UserData(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to load progress: %w", err)
			}
			level = min(data.CurrentLevel, levels.Count())
		}

		session, err := svc.StartSession(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		m, err := tui.NewModel(svc, tui.Options{Key: key, SessionKey: session.SessionKey, Level: level})
		if err != nil {
			return err
		}
		program := tea.NewProgram(m, tea.WithAltScreen())
		var runErr error
		if _, err := program.Run(); err != nil {
			runErr = fmt.Errorf("failed to run TUI: %w", err)
		}

		summary := m.Summary()
		if _, err := svc.EndSession(ctx, key, summary); err != nil {
			logErrf("failed to end session: %v\n", err)
		}
		if summary.LevelsAttempted > 0 {
			logErrf("Session: %d attempted, %d passed, +%d coins, +%d XP in %s\n",
				summary.LevelsAttempted, summary.LevelsCompleted, summary.TotalCoinsEarned,
				summary.TotalXPEarned, stats.FormatSeconds(summary.TotalTimeSeconds))
		}
		return runErr
	})
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show progress analytics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsKey, "key", "", "access key")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date for curves (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit curves to the last N attempts")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window in days")
	cmd.Flags().IntVar(&statsRecent, "recent", analytics.DefaultRecentActivityLimit, "recent attempts to show")
	cmd.Flags().IntVar(&statsSessions, "sessions", analytics.DefaultSessionLimit, "sessions to show")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a report instead of the dashboard")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	since, err := parseSince(statsSince)
	if err != nil {
		return err
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow <= 0 {
		return fmt.Errorf("--curve-window must be > 0")
	}
	opts := stats.ReportOptions{
		Analytics: analytics.Options{
			RecentActivityLimit: statsRecent,
			SessionLimit:        statsSessions,
			IncludeTrends:       true,
		},
		Since: since,
		Last:  statsLast,
	}

	return withService(cmd, func(fc *config.FileConfig) {
		overrideString(cmd, "key", statsKey, &fc.Practice.Key)
	}, func(settings config.Settings, _ *store.Store, svc *game.Service) error {
		key, err := requireKey(settings.PracticeKey)
		if err != nil {
			return err
		}
		if _, err := svc.User(context.Background(), key); err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}

		if statsPlain {
			report, err := stats.BuildReport(context.Background(), svc, key, opts)
			if err != nil {
				return err
			}
			chart := stats.Chart{Color: stats.ColorEnabled(os.Stdout)}
			return stats.RenderReport(cmd.OutOrStdout(), report, statsCurveWindow, chart)
		}

		m := statsui.NewModel(svc, key, opts, statsCurveWindow)
		program := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	})
}

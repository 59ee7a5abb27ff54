package dailyreport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brensch/statusreport/db"
	"github.com/brensch/statusreport/discord"
	"github.com/bwmarrin/discordgo"
)

const commandTimeout = 2 * time.Minute

const (
	// maxEmbedDescription is Discord's limit on an embed description, in characters.
	maxEmbedDescription = 4096
	maxHistoryError     = 200
)

// ReportRequest defines the inputs for the report command.
type ReportRequest struct {
	DryRun bool `discord:"optional,description:Post the report without removing anyone"`
}

// HistoryRequest defines the inputs for the history command.
type HistoryRequest struct {
	Limit int `discord:"optional,description:Number of runs to show,default:5,min:1,max:20"`
}

// DiscordFunctionReport registers the report command, which runs the report
// immediately. A run outlasts Discord's reply window, so the reply is deferred.
func (r *Runner) DiscordFunctionReport() discord.BotFunctionI {
	return discord.NewDeferredBotFunction("report", "Compile and post the daily report now", r.handleReportCommand)
}

// DiscordFunctionHistory registers the history command, which lists recent runs.
func (r *Runner) DiscordFunctionHistory() discord.BotFunctionI {
	return discord.NewBotFunction("history", "Show recent report runs", r.handleHistoryCommand)
}

func (r *Runner) handleReportCommand(req ReportRequest) (*discordgo.InteractionResponseData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	summary, err := r.Run(ctx, TriggerCommand, req.DryRun)
	if errors.Is(err, ErrRunInProgress) {
		return &discordgo.InteractionResponseData{
			Content: "A report run is already in progress.",
			Flags:   discordgo.MessageFlagsEphemeral,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{summaryEmbed(summary)},
	}, nil
}

func (r *Runner) handleHistoryCommand(req HistoryRequest) (*discordgo.InteractionResponseData, error) {
	limit := req.Limit
	if limit < 1 || limit > 20 {
		return nil, fmt.Errorf("limit must be between 1 and 20, got %d", limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := r.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}

	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{historyEmbed(runs)},
	}, nil
}

func summaryEmbed(s *RunSummary) *discordgo.MessageEmbed {
	color := discord.ColorSuccess
	if s.Status != db.StatusSucceeded {
		color = discord.ColorWarning
	}

	removed := 0
	for _, a := range s.Removals {
		if a.Removed {
			removed++
		}
	}

	description := fmt.Sprintf("Report for %s posted.\nMembers over the inactivity threshold: %d\nRemoved: %d",
		s.ReferenceDate.Format("2006-01-02"), len(s.Removals), removed)
	if s.DryRun {
		description += " (dry run)"
	}
	if failed := s.FailedRemovals(); failed > 0 {
		description += fmt.Sprintf("\nFailed removals: %d", failed)
	}

	return &discordgo.MessageEmbed{
		Title:       "Daily Report",
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Run " + s.RunID,
		},
	}
}

func historyEmbed(runs []db.Run) *discordgo.MessageEmbed {
	if len(runs) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Report History",
			Description: "No report runs recorded yet.",
			Color:       discord.ColorSuccess,
		}
	}

	var b strings.Builder
	written := 0
	for i, run := range runs {
		entry := historyLine(run)
		// Keep room for the trailing "more runs" line.
		if written+utf8.RuneCountInString(entry) > maxEmbedDescription-40 {
			fmt.Fprintf(&b, "…and %d more runs", len(runs)-i)
			break
		}
		b.WriteString(entry)
		written += utf8.RuneCountInString(entry)
	}

	return &discordgo.MessageEmbed{
		Title:       "Report History",
		Description: b.String(),
		Color:       discord.ColorSuccess,
	}
}

func historyLine(run db.Run) string {
	removed := 0
	for _, a := range run.Removals {
		if a.Removed {
			removed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "• %s `%s` %s via %s, %d over threshold, %d removed",
		run.ReferenceDate.Format("2006-01-02"), shortID(run.ID), run.Status, run.Trigger, len(run.Removals), removed)
	if run.DryRun {
		b.WriteString(" (dry run)")
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "\n  %s", truncate(run.Error, maxHistoryError))
	}
	b.WriteString("\n")
	return b.String()
}

// truncate cuts s to at most limit characters, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

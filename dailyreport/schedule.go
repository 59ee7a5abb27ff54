package dailyreport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brensch/statusreport/discord"
	"github.com/bwmarrin/discordgo"
)

// DiscordScheduleReport returns a scheduled task that runs the report on cronExpression.
func (r *Runner) DiscordScheduleReport(cronExpression string) discord.BotScheduleI {
	return discord.NewBotSchedule("daily_report", cronExpression, r.executeScheduledReport)
}

// executeScheduledReport runs the report. The report itself is posted by the
// run, so an embed is only returned when something needs attention.
func (r *Runner) executeScheduledReport(ctx context.Context) (*discordgo.MessageEmbed, error) {
	slog.Info("executing scheduled report")

	summary, err := r.Run(ctx, TriggerSchedule, false)
	if errors.Is(err, ErrRunInProgress) {
		return nil, nil
	}
	if err != nil && (summary == nil || summary.Result == nil) {
		return &discordgo.MessageEmbed{
			Title:       "Daily Report Error",
			Description: fmt.Sprintf("The report could not be compiled: %v", err),
			Color:       discord.ColorError,
			Timestamp:   time.Now().Format(time.RFC3339),
		}, nil
	}
	if err != nil {
		// Posting failed, so posting an embed will most likely fail too.
		return nil, err
	}

	if failed := summary.FailedRemovals(); failed > 0 {
		return &discordgo.MessageEmbed{
			Title:       "Daily Report Removals Failed",
			Description: fmt.Sprintf("%d of %d members could not be removed. Check the bot's Kick Members permission.", failed, len(summary.Removals)),
			Color:       discord.ColorWarning,
			Timestamp:   time.Now().Format(time.RFC3339),
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Run " + summary.RunID,
			},
		}, nil
	}

	return nil, nil
}

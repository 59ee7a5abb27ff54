package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // report zones must resolve in minimal containers

	"github.com/brensch/statusreport/clock"
	"github.com/brensch/statusreport/config"
	"github.com/brensch/statusreport/dailyreport"
	"github.com/brensch/statusreport/db"
	"github.com/brensch/statusreport/discord"
	"github.com/brensch/statusreport/log"
	"github.com/brensch/statusreport/members"
	"github.com/brensch/statusreport/report"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap logging at debug until the configured level is known.
	slog.SetDefault(slog.New(log.NewPrettyHandler(os.Stdout, log.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug},
	})))

	slog.Info("status report bot starting")

	cfg := config.Get()

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		slog.Warn("invalid log level, using info", "level", cfg.Log.Level, "error", err)
	}
	handler := log.NewZonedPrettyHandler(os.Stdout, cfg.Report.Timezone, log.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	})
	slog.SetDefault(slog.New(handler))
	slog.Info("configuration loaded successfully")

	dbClient, err := db.NewClient(cfg.Database.Directory)
	if err != nil {
		slog.Error("failed to create db client", "error", err)
		os.Exit(1)
	}

	err = dbClient.Start(ctx)
	if err != nil {
		slog.Error("failed to start db client", "error", err)
		os.Exit(1)
	}

	reportClock, err := clock.NewZoneClock(cfg.Report.Timezone)
	if err != nil {
		slog.Error("failed to create report clock", "error", err)
		os.Exit(1)
	}

	discordCfg := discord.BotConfig{
		AppID:     cfg.Discord.AppID,
		BotToken:  cfg.Discord.BotToken,
		GuildID:   cfg.Discord.GuildID,
		ChannelID: cfg.Discord.ChannelID,
		Timezone:  cfg.Report.Timezone,
	}

	slog.Info("initializing bot", "app_id", discordCfg.AppID, "guild_id", discordCfg.GuildID)

	// The runner needs the guild for removals and posting, and the bot needs
	// the runner's commands and schedule, so the guild is created first on a
	// REST-only session and the gateway session is opened by NewBot.
	guild, err := discord.NewRESTGuild(cfg.Discord.BotToken, cfg.Discord.GuildID, cfg.Discord.ChannelID)
	if err != nil {
		slog.Error("failed to create guild client", "error", err)
		os.Exit(1)
	}

	runner := dailyreport.NewRunner(
		members.NewSource(cfg.Members.Path, cfg.Members.URL),
		reportClock,
		guild,
		guild,
		dbClient,
		dailyreport.Config{
			Report: report.Options{
				RemovalThresholdDays: cfg.Report.RemovalThresholdDays,
				LeaderboardSize:      cfg.Report.LeaderboardSize,
				IncludeOtherYears:    cfg.Report.IncludeOtherYears,
			},
			KickEnabled: cfg.Report.KickEnabled,
			KickReason:  cfg.Report.KickReason,
		},
	)

	functions := []discord.BotFunctionI{
		runner.DiscordFunctionReport(),
		runner.DiscordFunctionHistory(),
	}

	schedules := []discord.BotScheduleI{
		runner.DiscordScheduleReport(cfg.Report.Cron),
	}

	bot, err := discord.NewBot(discordCfg, functions, schedules)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	slog.Info("bot is now running", "cron", cfg.Report.Cron, "timezone", cfg.Report.Timezone, "kick_enabled", cfg.Report.KickEnabled)

	// Wait for an interrupt signal to gracefully shut down.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down bot...")
	err = bot.Close()
	if err != nil {
		slog.Error("error during shutdown", "error", err)
	}

	err = dbClient.Stop()
	if err != nil {
		slog.Error("failed to stop db client", "error", err)
	}
}

package discord

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Bot encapsulates the discordgo session, configuration, registered functions, and schedules.
type Bot struct {
	*Guild
	session         *discordgo.Session
	config          BotConfig
	functions       []BotFunctionI
	schedules       []BotScheduleI
	scheduleManager *scheduleManager
}

// BotConfig contains configuration for the bot.
type BotConfig struct {
	AppID    string
	BotToken string
	// GuildID is the only guild commands are registered in and members are removed from.
	GuildID string
	// ChannelID receives reports and notifications. Empty means the first text channel.
	ChannelID string
	// Timezone is the IANA zone cron expressions are evaluated in.
	Timezone string
}

// NewBot opens the gateway, re-registers each command function in the configured guild,
// posts an online message listing the commands and schedules, and starts the schedules.
func NewBot(cfg BotConfig, functions []BotFunctionI, schedules []BotScheduleI) (*Bot, error) {
	// Create a new Discord session using the provided bot token.
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}

	dg.Identify.Intents = discordgo.IntentsGuilds

	bot := &Bot{
		Guild:     NewGuild(dg, cfg.GuildID, cfg.ChannelID),
		session:   dg,
		config:    cfg,
		functions: functions,
		schedules: schedules,
	}

	dg.AddHandler(bot.onInteractionCreate)

	// Open the websocket connection.
	if err := dg.Open(); err != nil {
		return nil, err
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, err
	}

	// Initialize and start the schedule manager if there are schedules
	if len(schedules) > 0 {
		bot.scheduleManager, err = newScheduleManager(bot.Guild, schedules, cfg.Timezone)
		if err != nil {
			dg.Close()
			return nil, err
		}
		err = bot.scheduleManager.start()
		if err != nil {
			slog.Error("failed to start schedule manager", "error", err)
			dg.Close()
			return nil, err
		}
	}

	if err := bot.SendMessage(context.Background(), bot.onlineMessage()); err != nil {
		slog.Error("failed to send online message", "guild", cfg.GuildID, "error", err)
	}

	return bot, nil
}

// onlineMessage lists the available commands and active schedules.
func (b *Bot) onlineMessage() string {
	var availableCommands []string
	for _, fn := range b.functions {
		availableCommands = append(availableCommands, "/"+fn.GetName())
	}

	var activeSchedules []string
	for _, schedule := range b.schedules {
		activeSchedules = append(activeSchedules, fmt.Sprintf("%s (%s)", schedule.GetName(), schedule.GetCronExpression()))
	}

	msg := fmt.Sprintf("Status report bot online. Available commands: %s", strings.Join(availableCommands, ", "))
	if len(activeSchedules) > 0 {
		msg += fmt.Sprintf("\nActive schedules: %s", strings.Join(activeSchedules, ", "))
	}
	return msg
}

// registerCommands deletes the bot's existing commands in the guild and
// registers one per function.
func (b *Bot) registerCommands() error {
	guildID := b.config.GuildID

	existingCommands, err := b.session.ApplicationCommands(b.config.AppID, guildID)
	if err != nil {
		slog.Error("failed to get commands for guild", "guild", guildID, "error", err)
	}
	for _, cmd := range existingCommands {
		err := b.session.ApplicationCommandDelete(b.config.AppID, guildID, cmd.ID)
		if err != nil {
			slog.Error("failed to delete command", "guild", guildID, "command", cmd.Name, "error", err)
		} else {
			slog.Debug("deleted command", "guild", guildID, "command", cmd.Name)
		}
	}

	for _, fn := range b.functions {
		options, err := structToCommandOptions(fn.GetRequestPrototype())
		if err != nil {
			slog.Error("failed to generate command options", "command", fn.GetName(), "error", err)
			return err
		}
		slog.Debug("initialising function", "name", fn.GetName(), "options", len(options))
		newCmd := &discordgo.ApplicationCommand{
			Name:        fn.GetName(),
			Description: fn.GetDescription(),
			Options:     options,
		}
		_, err = b.session.ApplicationCommandCreate(b.config.AppID, guildID, newCmd)
		if err != nil {
			slog.Error("failed to create guild slash command", "guild", guildID, "command", fn.GetName(), "error", err)
			return err
		}
	}

	return nil
}

// interactionResponder is the part of *discordgo.Session used to answer
// interactions.
type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.handleInteraction(s, i)
}

// handleInteraction routes interactions to the BotFunction matching the command name.
func (b *Bot) handleInteraction(r interactionResponder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	cmdData := i.ApplicationCommandData()

	slog.Debug("received interaction", "cmd", cmdData.Name, "guild", i.GuildID)

	var fn BotFunctionI
	for _, f := range b.functions {
		if f.GetName() == cmdData.Name {
			fn = f
			break
		}
	}
	if fn == nil {
		slog.Warn("received unknown command", "command", cmdData.Name)
		respondError(r, i, "Unknown command: "+cmdData.Name)
		return
	}

	if fn.ShouldDefer() {
		b.handleDeferred(r, i, fn, &cmdData)
		return
	}

	respData, err := fn.HandleInteraction(&cmdData)
	if err != nil {
		slog.Error("failed to execute command", "command", fn.GetName(), "error", err.Error())
		respondError(r, i, fmt.Sprintf("```%v```", err))
		return
	}

	err = r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: respData,
	})
	if err != nil {
		slog.Error("failed to respond to command", "command", fn.GetName(), "error", err)
	}
}

// handleDeferred acknowledges the interaction before running the handler, then
// replaces the placeholder with the handler's reply. Errors after the
// acknowledgement are sent as a follow-up.
func (b *Bot) handleDeferred(r interactionResponder, i *discordgo.InteractionCreate, fn BotFunctionI, cmdData *discordgo.ApplicationCommandInteractionData) {
	err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Error("failed to defer command reply", "command", fn.GetName(), "error", err)
		return
	}

	respData, err := fn.HandleInteraction(cmdData)
	if err != nil {
		slog.Error("failed to execute command", "command", fn.GetName(), "error", err.Error())
		followupError(r, i, fmt.Sprintf("```%v```", err))
		return
	}

	edit := &discordgo.WebhookEdit{}
	if len(respData.Embeds) > 0 {
		edit.Embeds = &respData.Embeds
	}
	if respData.Content != "" {
		edit.Content = &respData.Content
	}
	if _, err := r.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Error("failed to edit deferred reply", "command", fn.GetName(), "error", err)
		followupError(r, i, fmt.Sprintf("```%v```", err))
	}
}

func errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Error",
		Description: description,
		Color:       ColorError,
	}
}

func respondError(r interactionResponder, i *discordgo.InteractionCreate, description string) {
	err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{errorEmbed(description)},
		},
	})
	if err != nil {
		slog.Error("failed to send error response", "error", err)
	}
}

func followupError(r interactionResponder, i *discordgo.InteractionCreate, description string) {
	_, err := r.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{errorEmbed(description)},
	})
	if err != nil {
		slog.Error("failed to send error follow-up", "error", err)
	}
}

// Close gracefully closes the Discord session and stops the schedule manager.
func (b *Bot) Close() error {
	slog.Info("shutting down bot")

	// Stop the schedule manager if it was initialized
	if b.scheduleManager != nil {
		b.scheduleManager.stop()
	}

	return b.session.Close()
}

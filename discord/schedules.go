package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
)

// Embed colours used for notifications.
const (
	ColorSuccess = 0x00FF00
	ColorWarning = 0xFFA500
	ColorError   = 0xFF0000
)

// BotScheduleI defines the interface for scheduled tasks in the bot
type BotScheduleI interface {
	// GetName returns the name of the schedule
	GetName() string
	// GetCronExpression returns the cron expression for when this schedule should run
	GetCronExpression() string
	// Execute runs the scheduled task and returns an embed to send (or nil if no notification needed)
	Execute(ctx context.Context) (*discordgo.MessageEmbed, error)
}

// GenericBotSchedule is a generic implementation of BotScheduleI
type GenericBotSchedule struct {
	// Name is the schedule's identifier
	Name string
	// CronExpression determines when the schedule will execute
	CronExpression string
	// Handler is the function to execute on schedule
	Handler func(ctx context.Context) (*discordgo.MessageEmbed, error)
}

// GetName returns the schedule's name
func (bs *GenericBotSchedule) GetName() string {
	return bs.Name
}

// GetCronExpression returns the schedule's cron expression
func (bs *GenericBotSchedule) GetCronExpression() string {
	return bs.CronExpression
}

// Execute runs the scheduled task
func (bs *GenericBotSchedule) Execute(ctx context.Context) (*discordgo.MessageEmbed, error) {
	return bs.Handler(ctx)
}

// NewBotSchedule creates a new scheduled task with the given name, cron expression, and handler
func NewBotSchedule(name string, cronExpr string, handler func(ctx context.Context) (*discordgo.MessageEmbed, error)) BotScheduleI {
	return &GenericBotSchedule{
		Name:           name,
		CronExpression: cronExpr,
		Handler:        handler,
	}
}

// embedSender is the part of Guild the schedule manager needs.
type embedSender interface {
	SendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error
}

// scheduleManager handles scheduling and executing tasks
type scheduleManager struct {
	sender     embedSender
	cron       *cron.Cron
	schedules  []BotScheduleI
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// newScheduleManager creates a scheduleManager whose cron expressions are
// evaluated in the named zone (UTC when empty). A schedule that is still
// running when its next tick arrives skips that tick.
func newScheduleManager(sender embedSender, schedules []BotScheduleI, zone string) (*scheduleManager, error) {
	loc := time.UTC
	if zone != "" {
		var err error
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("failed to load schedule time zone %q: %w", zone, err)
		}
	}

	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduleManager{
		sender: sender,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		schedules:  schedules,
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// start initializes and starts all scheduled tasks
func (sm *scheduleManager) start() error {
	for _, schedule := range sm.schedules {
		sched := schedule
		_, err := sm.cron.AddFunc(sched.GetCronExpression(), func() {
			sm.executeSchedule(sched)
		})
		if err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", sched.GetName(), err)
		}
		slog.Info("registered schedule", "name", sched.GetName(), "cron", sched.GetCronExpression())
	}

	sm.cron.Start()
	slog.Info("schedule manager started", "schedules", len(sm.schedules))
	return nil
}

// executeSchedule runs a scheduled task and sends its notification, if any.
func (sm *scheduleManager) executeSchedule(schedule BotScheduleI) {
	slog.Debug("executing schedule", "name", schedule.GetName(), "cron", schedule.GetCronExpression())

	embed, err := schedule.Execute(sm.ctx)
	if err != nil {
		slog.Error("failed to execute schedule",
			"name", schedule.GetName(),
			"error", err)
		return
	}

	// If the embed is nil, no notification is needed
	if embed == nil {
		return
	}

	if err := sm.sender.SendEmbed(sm.ctx, embed); err != nil {
		slog.Error("failed to send schedule notification",
			"schedule", schedule.GetName(),
			"error", err)
	}
}

// stop cancels running tasks and waits for them to return.
func (sm *scheduleManager) stop() {
	sm.cancelFunc()
	<-sm.cron.Stop().Done()
	slog.Info("schedule manager stopped")
}

// cronLogger forwards robfig/cron's logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

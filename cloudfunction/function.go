// Package cloudfunction exposes the report as an HTTP function for
// deployments where an external scheduler calls the bot instead of the
// in-process cron schedule.
package cloudfunction

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/brensch/statusreport/clock"
	"github.com/brensch/statusreport/config"
	"github.com/brensch/statusreport/dailyreport"
	"github.com/brensch/statusreport/discord"
	"github.com/brensch/statusreport/log"
	"github.com/brensch/statusreport/members"
	"github.com/brensch/statusreport/report"
)

func init() {
	functions.HTTP("sendReport", handleSendReport)
}

var (
	runner     *dailyreport.Runner
	runnerErr  error
	runnerOnce sync.Once
)

// reportRunner builds the runner on the first request. Cloud Functions keep
// the instance warm, so later requests reuse it.
func reportRunner() (*dailyreport.Runner, error) {
	runnerOnce.Do(func() {
		slog.SetDefault(slog.New(log.NewZonedPrettyHandler(os.Stdout, "UTC", log.PrettyHandlerOptions{})))

		cfg, err := config.Load(config.DefaultLocations())
		if err != nil {
			runnerErr = err
			return
		}

		reportClock, err := clock.NewZoneClock(cfg.Report.Timezone)
		if err != nil {
			runnerErr = err
			return
		}

		guild, err := discord.NewRESTGuild(cfg.Discord.BotToken, cfg.Discord.GuildID, cfg.Discord.ChannelID)
		if err != nil {
			runnerErr = err
			return
		}

		// No run store: function instances have no durable local disk.
		runner = dailyreport.NewRunner(
			members.NewSource(cfg.Members.Path, cfg.Members.URL),
			reportClock,
			guild,
			guild,
			nil,
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
	})
	return runner, runnerErr
}

type runResponse struct {
	RunID         string   `json:"run_id,omitempty"`
	ReferenceDate string   `json:"reference_date,omitempty"`
	Status        string   `json:"status"`
	DryRun        bool     `json:"dry_run"`
	Posted        bool     `json:"posted"`
	RemovedIDs    []uint64 `json:"removed_ids,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func handleSendReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rn, err := reportRunner()
	if err != nil {
		slog.Error("failed to initialise report runner", "error", err)
		writeJSON(w, http.StatusInternalServerError, runResponse{Status: "error", Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	dryRun := r.URL.Query().Get("dry_run") == "true"
	summary, err := rn.Run(ctx, dailyreport.TriggerHTTP, dryRun)
	writeJSON(w, statusFor(err), responseFor(summary, err))
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, dailyreport.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, report.ErrMalformedInput),
		errors.Is(err, report.ErrMissingField),
		errors.Is(err, report.ErrMalformedRecord):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func responseFor(summary *dailyreport.RunSummary, err error) runResponse {
	resp := runResponse{Status: "error"}
	if summary != nil {
		resp.RunID = summary.RunID
		resp.ReferenceDate = summary.ReferenceDate.Format("2006-01-02")
		resp.Status = summary.Status
		resp.DryRun = summary.DryRun
		resp.Posted = summary.Posted
		if summary.Result != nil {
			resp.RemovedIDs = summary.Result.RemovedIDs
		}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body runResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

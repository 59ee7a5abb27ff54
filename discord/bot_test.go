package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// recordingResponder keeps every call in order.
type recordingResponder struct {
	calls     []string
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followups []*discordgo.WebhookParams
}

func (r *recordingResponder) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	r.calls = append(r.calls, "respond")
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recordingResponder) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.calls = append(r.calls, "edit")
	r.edits = append(r.edits, newresp)
	return &discordgo.Message{}, nil
}

func (r *recordingResponder) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.calls = append(r.calls, "followup")
	r.followups = append(r.followups, data)
	return &discordgo.Message{}, nil
}

func commandInteraction(name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: name},
	}}
}

func TestDeferredFunctionAcknowledgesBeforeHandler(t *testing.T) {
	responder := &recordingResponder{}
	var callsAtHandler int
	fn := NewDeferredBotFunction("report", "Run the report", func(req sampleRequest) (*discordgo.InteractionResponseData, error) {
		callsAtHandler = len(responder.calls)
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{Title: "Daily Report"}},
		}, nil
	})
	bot := &Bot{functions: []BotFunctionI{fn}}

	bot.handleInteraction(responder, commandInteraction("report"))

	if callsAtHandler != 1 {
		t.Fatalf("expected the reply to be deferred before the handler ran, saw %d calls", callsAtHandler)
	}
	if len(responder.responses) != 1 ||
		responder.responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("expected a single deferred response, got %+v", responder.responses)
	}
	if len(responder.edits) != 1 || responder.edits[0].Embeds == nil || (*responder.edits[0].Embeds)[0].Title != "Daily Report" {
		t.Fatalf("expected the handler reply to be edited in, got %+v", responder.edits)
	}
	if responder.edits[0].Content != nil {
		t.Fatalf("expected no content edit for an embed-only reply")
	}
}

func TestDeferredFunctionErrorIsFollowedUp(t *testing.T) {
	responder := &recordingResponder{}
	fn := NewDeferredBotFunction("report", "Run the report", func(req sampleRequest) (*discordgo.InteractionResponseData, error) {
		return nil, errors.New("members file missing")
	})
	bot := &Bot{functions: []BotFunctionI{fn}}

	bot.handleInteraction(responder, commandInteraction("report"))

	want := []string{"respond", "followup"}
	if len(responder.calls) != len(want) || responder.calls[0] != want[0] || responder.calls[1] != want[1] {
		t.Fatalf("expected calls %v, got %v", want, responder.calls)
	}
	if responder.followups[0].Embeds[0].Description != "```members file missing```" {
		t.Fatalf("unexpected follow-up: %+v", responder.followups[0].Embeds[0])
	}
}

func TestImmediateFunctionRespondsWithResult(t *testing.T) {
	responder := &recordingResponder{}
	fn := NewBotFunction("history", "Show runs", func(req sampleRequest) (*discordgo.InteractionResponseData, error) {
		return &discordgo.InteractionResponseData{Content: "no runs"}, nil
	})
	bot := &Bot{functions: []BotFunctionI{fn}}

	bot.handleInteraction(responder, commandInteraction("history"))

	if len(responder.responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responder.responses))
	}
	resp := responder.responses[0]
	if resp.Type != discordgo.InteractionResponseChannelMessageWithSource || resp.Data.Content != "no runs" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(responder.edits) != 0 {
		t.Fatalf("expected no edits for an immediate reply")
	}
}

func TestUnknownCommandRespondsWithError(t *testing.T) {
	responder := &recordingResponder{}
	bot := &Bot{}

	bot.handleInteraction(responder, commandInteraction("missing"))

	if len(responder.responses) != 1 || responder.responses[0].Data.Embeds[0].Description != "Unknown command: missing" {
		t.Fatalf("unexpected responses %+v", responder.responses)
	}
}

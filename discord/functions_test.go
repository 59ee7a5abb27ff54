package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

type sampleRequest struct {
	DryRun bool   `discord:"optional,description:Skip removals"`
	Limit  int    `discord:"optional,default:5,min:1,max:20"`
	Mode   string `discord:"choices:full|Full report;short|Short report"`
}

func TestStructToCommandOptions(t *testing.T) {
	options, err := structToCommandOptions(sampleRequest{})
	if err != nil {
		t.Fatalf("structToCommandOptions failed: %v", err)
	}
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(options))
	}

	// Required options come first.
	mode, dryRun, limit := options[0], options[1], options[2]
	if dryRun.Name != "dryrun" || dryRun.Type != discordgo.ApplicationCommandOptionBoolean || dryRun.Required {
		t.Fatalf("unexpected dryrun option: %+v", dryRun)
	}
	if dryRun.Description != "Skip removals" {
		t.Fatalf("unexpected description %q", dryRun.Description)
	}
	if limit.Type != discordgo.ApplicationCommandOptionInteger {
		t.Fatalf("expected integer option, got %v", limit.Type)
	}
	if limit.MinValue == nil || *limit.MinValue != 1 || limit.MaxValue != 20 {
		t.Fatalf("unexpected limit bounds: %+v", limit)
	}
	if !mode.Required || len(mode.Choices) != 2 || mode.Choices[1].Name != "Short report" {
		t.Fatalf("unexpected mode option: %+v", mode)
	}
}

func TestStructToCommandOptionsRejectsBadTags(t *testing.T) {
	type unknownKey struct {
		Name string `discord:"colour:blue"`
	}
	if _, err := structToCommandOptions(unknownKey{}); err == nil {
		t.Fatalf("expected error for unknown tag key")
	}

	type badChoice struct {
		Count int `discord:"choices:one|One"`
	}
	if _, err := structToCommandOptions(badChoice{}); err == nil {
		t.Fatalf("expected error for non-integer choice on integer field")
	}
}

func TestHandleInteractionDecodesOptions(t *testing.T) {
	var got sampleRequest
	fn := NewBotFunction("sample", "Sample command", func(req sampleRequest) (*discordgo.InteractionResponseData, error) {
		got = req
		return &discordgo.InteractionResponseData{Content: "ok"}, nil
	})

	data := &discordgo.ApplicationCommandInteractionData{
		Name: "sample",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "dryrun", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
			{Name: "mode", Type: discordgo.ApplicationCommandOptionString, Value: "short"},
		},
	}

	resp, err := fn.HandleInteraction(data)
	if err != nil {
		t.Fatalf("HandleInteraction failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("unexpected response %q", resp.Content)
	}
	if !got.DryRun || got.Mode != "short" {
		t.Fatalf("options not decoded: %+v", got)
	}
	if got.Limit != 5 {
		t.Fatalf("expected default limit 5, got %d", got.Limit)
	}
	if fn.GetDescription() != "Sample command" {
		t.Fatalf("unexpected description %q", fn.GetDescription())
	}
}

package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/mitchellh/mapstructure"
)

// Request is a blank interface for the command request definitions.
type Request interface{}

// BotFunctionI is the common interface for all bot command functions.
type BotFunctionI interface {
	GetName() string
	GetDescription() string
	GetRequestPrototype() Request
	// ShouldDefer reports whether the reply is acknowledged before the handler
	// runs. Handlers that may take longer than Discord's three second window
	// must defer.
	ShouldDefer() bool
	// HandleInteraction decodes interaction data into a request struct and calls the handler.
	// It returns the response data that can be sent directly to Discord.
	HandleInteraction(data *discordgo.ApplicationCommandInteractionData) (*discordgo.InteractionResponseData, error)
}

// GenericBotFunction is a generic implementation of BotFunctionI.
type GenericBotFunction[T Request] struct {
	// Name is the command name.
	Name string
	// Description is shown in the Discord command picker.
	Description string
	// RequestPrototype is an instance of the request type (typically the zero value)
	// used for reflection to generate command options.
	RequestPrototype T
	// Handler is the function to execute for the command.
	Handler func(T) (*discordgo.InteractionResponseData, error)
	// DeferReply acknowledges the interaction first and edits in the result.
	DeferReply bool
}

// GetName returns the command's name.
func (bf *GenericBotFunction[T]) GetName() string {
	return bf.Name
}

// GetDescription returns the command's description.
func (bf *GenericBotFunction[T]) GetDescription() string {
	if bf.Description == "" {
		return "Auto-generated command for " + bf.Name
	}
	return bf.Description
}

// ShouldDefer reports whether the reply is deferred.
func (bf *GenericBotFunction[T]) ShouldDefer() bool {
	return bf.DeferReply
}

// GetRequestPrototype returns the command's request prototype.
func (bf *GenericBotFunction[T]) GetRequestPrototype() Request {
	return bf.RequestPrototype
}

// HandleInteraction processes the interaction by constructing a request of type T from the data
// and then invoking the handler. It decodes the options using mapstructure and then applies any defaults.
func (bf *GenericBotFunction[T]) HandleInteraction(data *discordgo.ApplicationCommandInteractionData) (*discordgo.InteractionResponseData, error) {
	var req T

	// Build a map from option name to its value.
	optsMap := make(map[string]interface{})
	for _, opt := range data.Options {
		optsMap[opt.Name] = opt.Value
	}

	// Option names are lower-cased field names, which mapstructure matches
	// case-insensitively. The "discord" tag carries options, not names, so it
	// is not used as the decoder tag.
	decoderConfig := mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true, // helps convert numbers and booleans automatically.
	}
	decoder, err := mapstructure.NewDecoder(&decoderConfig)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(optsMap); err != nil {
		return nil, err
	}

	// Set default values on fields that are still zero.
	if err := setDefaults(&req); err != nil {
		return nil, err
	}

	return bf.Handler(req)
}

// NewBotFunction creates a slash command backed by handler. Options are
// generated from T's exported fields, configured with a "discord" tag:
//
//   - optional:    the option may be omitted.
//   - description: the text shown in the command picker.
//   - choices:     "value|Label" pairs separated by semicolons.
//   - default:     the value used when the option is omitted.
//   - min, max:    bounds for numeric options.
func NewBotFunction[T Request](name, description string, handler func(T) (*discordgo.InteractionResponseData, error)) BotFunctionI {
	var reqPrototype T
	return &GenericBotFunction[T]{
		Name:             name,
		Description:      description,
		RequestPrototype: reqPrototype,
		Handler:          handler,
	}
}

// NewDeferredBotFunction is NewBotFunction for slow handlers: the interaction
// is acknowledged straight away and the handler's reply replaces the
// "thinking" placeholder when it returns.
func NewDeferredBotFunction[T Request](name, description string, handler func(T) (*discordgo.InteractionResponseData, error)) BotFunctionI {
	return &GenericBotFunction[T]{
		Name:        name,
		Description: description,
		Handler:     handler,
		DeferReply:  true,
	}
}

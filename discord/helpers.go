package discord

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// optionTag is the parsed form of a `discord:"..."` struct tag, for example
// `discord:"optional,description:Runs to show,default:5,min:1,max:20"`.
type optionTag struct {
	optional    bool
	description string
	choices     string
	def         string
	min         *float64
	max         *float64
}

func parseOptionTag(tag string) (optionTag, error) {
	var ot optionTag
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "":
		case "optional":
			ot.optional = true
		case "description":
			ot.description = value
		case "choices":
			ot.choices = value
		case "default":
			ot.def = value
		case "min", "max":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return ot, fmt.Errorf("invalid %s bound %q: %w", key, value, err)
			}
			if key == "min" {
				ot.min = &f
			} else {
				ot.max = &f
			}
		default:
			return ot, fmt.Errorf("unknown discord tag key %q", key)
		}
	}
	return ot, nil
}

// parseChoices turns "val1|Label1;val2|Label2" into option choices. Values
// are converted to the field's type so integer options get integer choices.
func parseChoices(s string, t reflect.Type) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		raw, name, ok := strings.Cut(pair, "|")
		if !ok {
			name = raw
		}
		value, err := convertType(raw, t)
		if err != nil {
			return nil, fmt.Errorf("invalid choice %q: %w", raw, err)
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: value.Interface(),
		})
	}
	return choices, nil
}

// setDefaults fills zero-valued fields of the struct behind req from their
// tag's default.
func setDefaults(req interface{}) error {
	v := reflect.ValueOf(req)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("setDefaults: req is not a pointer to struct")
	}
	v = v.Elem()

	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() || !fieldVal.IsZero() {
			continue
		}
		tag, ok := field.Tag.Lookup("discord")
		if !ok {
			continue
		}
		ot, err := parseOptionTag(tag)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if ot.def == "" {
			continue
		}
		converted, err := convertType(ot.def, field.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		fieldVal.Set(converted)
	}

	return nil
}

func convertType(val string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(val).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(i).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported type for conversion: %s", t.Kind())
	}
}

func optionType(k reflect.Kind) discordgo.ApplicationCommandOptionType {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return discordgo.ApplicationCommandOptionInteger
	case reflect.Float32, reflect.Float64:
		return discordgo.ApplicationCommandOptionNumber
	case reflect.Bool:
		return discordgo.ApplicationCommandOptionBoolean
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

// structToCommandOptions builds the slash command options for a request
// struct. Each exported field becomes one option named after the lower-cased
// field name. Required options are listed first, as Discord demands.
func structToCommandOptions(req Request) ([]*discordgo.ApplicationCommandOption, error) {
	t := reflect.TypeOf(req)
	if t == nil {
		return nil, nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("request is not a struct")
	}

	var required, optional []*discordgo.ApplicationCommandOption
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		ot, err := parseOptionTag(field.Tag.Get("discord"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		name := strings.ToLower(field.Name)
		opt := &discordgo.ApplicationCommandOption{
			Type:        optionType(field.Type.Kind()),
			Name:        name,
			Description: ot.description,
			Required:    !ot.optional,
			MinValue:    ot.min,
		}
		if opt.Description == "" {
			opt.Description = "Auto-generated option for " + name
		}
		if ot.max != nil {
			opt.MaxValue = *ot.max
		}
		if ot.choices != "" {
			opt.Choices, err = parseChoices(ot.choices, field.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
		}

		if opt.Required {
			required = append(required, opt)
		} else {
			optional = append(optional, opt)
		}
	}

	return append(required, optional...), nil
}

package main

import (
	"log/slog"
	"os"

	"github.com/brensch/statusreport/config"
	"gopkg.in/yaml.v3"
)

// Writes a config template with every key present so the file can be copied
// to one of config.DefaultLocations and filled in.
func main() {
	slog.Info("generating config template")
	var template config.AppConfig
	template.Members.Path = "./members.json"
	template.Report.Cron = "0 21 * * *"
	template.Report.Timezone = "Asia/Kolkata"

	confYAML, err := yaml.Marshal(template)
	if err != nil {
		slog.Error("failed to marshal config template", "err", err)
		return
	}

	err = os.WriteFile("./config.example.yaml", confYAML, 0644)
	if err != nil {
		slog.Error("failed to write config template", "err", err)
		return
	}
}

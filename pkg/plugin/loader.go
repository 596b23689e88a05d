package plugin

import (
	"fmt"
	"log/slog"

	"github.com/deepthink-ai/deepthink/pkg/config"
)

// RegisterFunc registers one plugin into a center from its manifest entry.
// Implementations live in the plugins package and are looked up by name.
type RegisterFunc func(center *Center, cfg *config.Config, entry config.PluginManifestEntry) error

// LoadPluginsForBrain registers every manifest entry targeting the center's
// brain using the provided builder table. A missing builder or a failed
// registration logs and skips that plugin; partial registration is
// acceptable. Returns the number of plugins registered.
func LoadPluginsForBrain(center *Center, cfg *config.Config, builders map[string]RegisterFunc) int {
	loaded := 0
	for _, entry := range cfg.Plugins {
		if entry.Brain != center.Brain() {
			continue
		}
		register, ok := builders[entry.Name]
		if !ok {
			slog.Error("No builder for declared plugin, skipping",
				"brain", entry.Brain, "plugin", entry.Name)
			continue
		}
		if err := safeRegister(register, center, cfg, entry); err != nil {
			slog.Error("Plugin registration failed, skipping",
				"brain", entry.Brain, "plugin", entry.Name, "error", err)
			continue
		}
		loaded++
	}
	slog.Info("Brain plugins loaded", "brain", center.Brain(), "count", loaded)
	return loaded
}

func safeRegister(register RegisterFunc, center *Center, cfg *config.Config, entry config.PluginManifestEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("registration panicked: %v", r)
		}
	}()
	return register(center, cfg, entry)
}

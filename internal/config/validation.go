package config

import (
	"errors"
	"fmt"
	"time"
)

func validateCrossFields(cfg *Config) error {
	var errs []error

	switch cfg.AI.Provider {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required when ai.provider is gemini"))
		}
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required when ai.provider is openai"))
		}
	}

	if !cfg.OneBot.Enabled && !cfg.Telegram.Enabled {
		errs = append(errs, errors.New("at least one host (onebot or telegram) must be enabled"))
	}

	if _, err := time.LoadLocation(cfg.Engine.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("engine.timezone %q: %w", cfg.Engine.Timezone, err))
	}

	if err := uniqueIDs("engine.groups", cfg.Engine.Groups); err != nil {
		errs = append(errs, err)
	}
	if err := uniqueIDs("engine.users", cfg.Engine.Users); err != nil {
		errs = append(errs, err)
	}

	for name, task := range cfg.Scheduler.Tasks {
		if task.Enabled && task.Schedule == "" {
			errs = append(errs, fmt.Errorf("scheduler.tasks.%s is enabled but has no schedule", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func uniqueIDs(section string, entries []EntityConfig) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%s: duplicate id %d", section, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

package config

import "time"

const (
	// EnvPrefix is prepended to every environment override (BYM_ENGINE_TIMEZONE, ...).
	EnvPrefix = "BYM"

	defaultImagePlaceholder   = "[图片]"
	defaultBlockedPlaceholder = "你好"
	defaultEmptyMentionPrompt = "我只是@了你一下，什么都没说"
)

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"database.path":           "./bym.db",
	"database.retention_days": 30,

	"ai.provider":        "gemini",
	"ai.max_tool_rounds": 4,

	"gemini.api_key":             "",
	"gemini.model_name":          "gemini-2.0-flash",
	"gemini.max_retries":         2,
	"gemini.retry_delay_seconds": 2,

	"openai.api_key":             "",
	"openai.base_url":            "https://api.openai.com/v1",
	"openai.model":               "gpt-4o-mini",
	"openai.max_retries":         2,
	"openai.retry_delay_seconds": 2,

	"onebot.enabled":            false,
	"onebot.ws_url":             "",
	"onebot.access_token":       "",
	"onebot.reconnect_interval": 10 * time.Second,
	"onebot.api_timeout":        8 * time.Second,
	"onebot.member_cache_ttl":   10 * time.Minute,
	"onebot.image_max_bytes":    10 * 1024 * 1024,

	"telegram.enabled":       false,
	"telegram.token":         "",
	"telegram.admin_user_id": 0,

	"engine.enabled":                true,
	"engine.command_prefix":         "#",
	"engine.labels":                 []string{"小助手"},
	"engine.timezone":               "Asia/Shanghai",
	"engine.preset":                 "",
	"engine.blocked_placeholder":    defaultBlockedPlaceholder,
	"engine.fight_back_prompt":      "",
	"engine.auto_image_description": false,
	"engine.question_boost":         false,
	"engine.image_placeholder":      defaultImagePlaceholder,
	"engine.empty_mention_prompt":   defaultEmptyMentionPrompt,
	"engine.empty_mention_delay":    3 * time.Second,
	"engine.benign_long_markers":    []string{"[转发]", "[合并转发]"},

	"tools.http_timeout":      15 * time.Second,
	"tools.website_max_chars": 2000,
	"tools.weather_base_url":  "https://wttr.in",
	"tools.search_sentences":  3,

	"scheduler.tasks.sql_maintenance.enabled":    true,
	"scheduler.tasks.sql_maintenance.schedule":   "0 0 4 * * *",
	"scheduler.tasks.history_retention.enabled":  true,
	"scheduler.tasks.history_retention.schedule": "0 30 3 * * *",
}

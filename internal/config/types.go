package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config holds the complete application configuration.
// Values come from config.yaml and can be overridden by BYM_* environment
// variables (e.g. BYM_GEMINI_API_KEY).
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	OneBot    OneBotConfig    `mapstructure:"onebot"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig locates the SQLite file and bounds stored history.
type DatabaseConfig struct {
	Path          string `mapstructure:"path"           validate:"required"`
	RetentionDays int    `mapstructure:"retention_days" validate:"min=0"`
}

// AIConfig selects the model backend shared by the engine and the tools.
type AIConfig struct {
	Provider      string `mapstructure:"provider"        validate:"oneof=gemini openai"`
	MaxToolRounds int    `mapstructure:"max_tool_rounds" validate:"min=0,max=10"`
}

// GeminiConfig configures the Google Gemini backend.
type GeminiConfig struct {
	APIKey            string `mapstructure:"api_key"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// OpenAIConfig configures any OpenAI-compatible chat completion backend.
type OpenAIConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"            validate:"omitempty,url"`
	Model             string `mapstructure:"model"               validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// OneBotConfig configures the QQ host reached over a OneBot v11 websocket.
type OneBotConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	WSURL             string        `mapstructure:"ws_url"             validate:"required_if=Enabled true,omitempty,url"`
	AccessToken       string        `mapstructure:"access_token"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" validate:"min=0"`
	APITimeout        time.Duration `mapstructure:"api_timeout"        validate:"min=0"`
	MemberCacheTTL    time.Duration `mapstructure:"member_cache_ttl"   validate:"min=0"`
	ImageMaxBytes     int64         `mapstructure:"image_max_bytes"    validate:"min=0"`
}

// TelegramConfig configures the Telegram host.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"         validate:"required_if=Enabled true"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"min=0"`

	// BotInfo is filled at startup from getMe and is never read from the file.
	BotInfo *models.User `mapstructure:"-"`
}

// EngineConfig drives the ambient response engine.
type EngineConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	CommandPrefix string   `mapstructure:"command_prefix"`
	Labels        []string `mapstructure:"labels"         validate:"required,min=1,dive,required"`
	Timezone      string   `mapstructure:"timezone"       validate:"required"`
	Preset        string   `mapstructure:"preset"`

	Groups    []EntityConfig `mapstructure:"groups"    validate:"dive"`
	Users     []EntityConfig `mapstructure:"users"     validate:"dive"`
	Blacklist []int64        `mapstructure:"blacklist"`

	BlockedPhrases     []string       `mapstructure:"blocked_phrases"`
	BlockedPlaceholder string         `mapstructure:"blocked_placeholder" validate:"required"`
	AbuseTriggers      []string       `mapstructure:"abuse_triggers"`
	FightBackPrompt    string         `mapstructure:"fight_back_prompt"`
	Substitutions      []Substitution `mapstructure:"substitutions"       validate:"dive"`
	BenignLongMarkers  []string       `mapstructure:"benign_long_markers"`

	AutoImageDescription bool          `mapstructure:"auto_image_description"`
	QuestionBoost        bool          `mapstructure:"question_boost"`
	ImagePlaceholder     string        `mapstructure:"image_placeholder"    validate:"required"`
	EmptyMentionPrompt   string        `mapstructure:"empty_mention_prompt" validate:"required"`
	EmptyMentionDelay    time.Duration `mapstructure:"empty_mention_delay"  validate:"min=0,max=1m"`

	SpecialUsers []SpecialUser `mapstructure:"special_users" validate:"dive"`
}

// EntityConfig is one per-group or per-user response policy record.
type EntityConfig struct {
	ID         int64 `mapstructure:"id"           validate:"required"`
	PropNum    int   `mapstructure:"prop_num"     validate:"min=0,max=100"`
	ChatsList  int   `mapstructure:"chats_list"   validate:"min=0,max=500"`
	MaxText    int   `mapstructure:"max_text"     validate:"min=0"`
	NotOfGroup bool  `mapstructure:"not_of_group"`
}

// Substitution replaces From with To in addressed user text.
type Substitution struct {
	From string `mapstructure:"from" validate:"required"`
	To   string `mapstructure:"to"`
}

// SpecialUser marks a speaker the assistant treats as its owner.
type SpecialUser struct {
	ID   int64  `mapstructure:"id"   validate:"required"`
	Name string `mapstructure:"name" validate:"required"`
}

// ToolsConfig tunes the tool implementations offered to the model.
type ToolsConfig struct {
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"      validate:"min=0"`
	WebsiteMaxChars int           `mapstructure:"website_max_chars" validate:"min=0"`
	WeatherBaseURL  string        `mapstructure:"weather_base_url"  validate:"omitempty,url"`
	SearchSentences int           `mapstructure:"search_sentences"  validate:"min=0,max=20"`
}

// SchedulerConfig lists scheduled tasks by registry name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and sets its cron schedule (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

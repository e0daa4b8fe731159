package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"clubbot/internal/domain"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Options struct {
	EnableLogCommand          bool `yaml:"enable_log_command"`
	RestrictPurgeToBotCreator bool `yaml:"restrict_purge_to_bot_creator"`
}

type AutomatedMessages struct {
	OpenDoorMessage string `yaml:"open_door_message"`
}

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token" validate:"required"`
	SlackAppToken string `yaml:"slack_app_token" validate:"required"`

	Prefix                string `yaml:"prefix" validate:"required,max=3"`
	ConfirmTimeoutSeconds int    `yaml:"confirm_timeout_seconds" validate:"gte=1,lte=120"`

	DBPath   string `yaml:"db_path" validate:"required"`
	Timezone string `yaml:"timezone"`

	BotCreatorID         string            `yaml:"bot_creator_id"`
	AdminSlackIDs        []string          `yaml:"admin_slack_ids"`
	AdminUserGroupID     string            `yaml:"admin_usergroup_id"`
	NewMemberUserGroupID string            `yaml:"new_member_usergroup_id"`
	OtherTeamUserGroupID string            `yaml:"other_team_usergroup_id"`
	ToggleableRoles      map[string]string `yaml:"toggleable_roles"`

	DebugChannelID   string `yaml:"debug_channel_id"`
	WelcomeChannelID string `yaml:"welcome_channel_id"`
	SpamChannelName  string `yaml:"spam_channel_name"`
	GreetingsFile    string `yaml:"greetings_file"`
	GitHubRepo       string `yaml:"github_repo"`

	TBAAuthKey         string `yaml:"tba_auth_key"`
	HoursLogWebhookURL string `yaml:"hours_log_webhook_url" validate:"omitempty,url"`

	MemberRefreshSchedule      string `yaml:"member_refresh_schedule"`
	HealthAddr                 string `yaml:"health_addr" validate:"omitempty,hostname_port"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds" validate:"gte=5"`

	Options          Options                 `yaml:"options"`
	Events           map[string]domain.Event `yaml:"events"`
	AutomatedMessage AutomatedMessages       `yaml:"automated_message"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Load reads CONFIG_PATH (default config.yaml) if present, applies env
// overrides and defaults, then validates.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.Prefix, "BOT_PREFIX")
	if err := envOverrideInt(&cfg.ConfirmTimeoutSeconds, "CONFIRM_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.BotCreatorID, "BOT_CREATOR_ID")
	envOverride(&cfg.AdminUserGroupID, "ADMIN_USERGROUP_ID")
	envOverride(&cfg.DebugChannelID, "DEBUG_CHANNEL_ID")
	envOverride(&cfg.TBAAuthKey, "TBA_AUTH_KEY")
	envOverride(&cfg.HoursLogWebhookURL, "HOURS_LOG_WEBHOOK_URL")
	envOverrideAllowEmpty(&cfg.MemberRefreshSchedule, "MEMBER_REFRESH_SCHEDULE")
	envOverride(&cfg.HealthAddr, "HEALTH_ADDR")
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	envOverrideBool(&cfg.Options.EnableLogCommand, "ENABLE_LOG_COMMAND")

	if ids := os.Getenv("ADMIN_SLACK_IDS"); ids != "" {
		cfg.AdminSlackIDs = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.AdminSlackIDs = append(cfg.AdminSlackIDs, id)
			}
		}
	}

	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.ConfirmTimeoutSeconds == 0 {
		cfg.ConfirmTimeoutSeconds = 8
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./clubbot.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.SpamChannelName == "" {
		cfg.SpamChannelName = "spam"
	}
	if _, set := os.LookupEnv("MEMBER_REFRESH_SCHEDULE"); !set && cfg.MemberRefreshSchedule == "" {
		cfg.MemberRefreshSchedule = "*/15 * * * *"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.MemberRefreshSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.MemberRefreshSchedule); err != nil {
			return cfg, fmt.Errorf("invalid member_refresh_schedule '%s': %w", cfg.MemberRefreshSchedule, err)
		}
	}
	for key, ev := range cfg.Events {
		if _, err := time.Parse(time.RFC3339, ev.Timestamp); err != nil {
			return cfg, fmt.Errorf("invalid events.%s.timestamp '%s': %w", key, ev.Timestamp, err)
		}
	}

	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"required":      "is required",
	"max":           "is too long",
	"gte":           "is too small",
	"lte":           "is too large",
	"url":           "must be a valid URL",
	"hostname_port": "must be host:port",
}

// Validate checks struct tags and reports each failure by its YAML key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var msgs []string
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		msgs = append(msgs, fmt.Sprintf("config '%s' %s", configKey(fe), msg))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// configKey drops the leading "Config." from the YAML-named namespace.
func configKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func (c Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

func (c Config) IsAdminID(userID string) bool {
	for _, id := range c.AdminSlackIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}

func (c Config) IsBotCreator(userID string) bool {
	return c.BotCreatorID != "" && c.BotCreatorID == userID
}

// EventNames returns configured event keys in sorted order.
func (c Config) EventNames() []string {
	names := make([]string, 0, len(c.Events))
	for k := range c.Events {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RoleNames returns toggleable role names in sorted order.
func (c Config) RoleNames() []string {
	names := make([]string, 0, len(c.ToggleableRoles))
	for k := range c.ToggleableRoles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

package config

import (
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	defaultConfigPath = "config.yaml"
	configPathEnv     = "COMMUNITY_INSIGHTS_CONFIG"

	emailEnv          = "SKOOL_EMAIL"
	passwordEnv       = "SKOOL_PASSWORD"
	communityURLsEnv  = "SKOOL_COMMUNITY_URLS"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	storeEndpointEnv  = "APPS_SCRIPT_WEB_APP_URL"
	apiKeyEnv         = "API_KEY"
	portEnv           = "PORT"
	llmProviderEnv    = "LLM_PROVIDER"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	slackTokenEnv     = "SLACK_BOT_TOKEN"
	slackChannelEnv   = "SLACK_CHANNEL_ID"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	scrapeCronEnv     = "SCRAPE_CRON"
	generateCronEnv   = "GENERATE_CRON"
	headlessEnv       = "BROWSER_HEADLESS"
	chromePathEnv     = "CHROME_PATH"
)

// Supported LLM providers.
const (
	ProviderGemini  = "gemini"
	ProviderChatGPT = "chatgpt"
)

const minSecretLength = 10

// Config holds high-level settings required across the application.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Community     CommunityConfig    `yaml:"community"`
	Browser       BrowserConfig      `yaml:"browser"`
	Store         StoreConfig        `yaml:"store"`
	LLM           LLMConfig          `yaml:"llm"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	APIKey          string        `yaml:"apiKey"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Addr is the listen address for net/http.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// CommunityConfig lists the communities to crawl and the account used to read them.
type CommunityConfig struct {
	Email           string   `yaml:"email"`
	Password        string   `yaml:"password"`
	URLs            []string `yaml:"urls"`
	LoginURL        string   `yaml:"loginUrl"`
	PostLimit       int      `yaml:"postLimit"`
	RecentCacheSize int      `yaml:"recentCacheSize"`
}

// BrowserConfig tunes the headless browser and the feed waits.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	ExecPath          string        `yaml:"execPath"`
	UserAgent         string        `yaml:"userAgent"`
	WindowWidth       int           `yaml:"windowWidth"`
	WindowHeight      int           `yaml:"windowHeight"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout"`
	FeedTimeout       time.Duration `yaml:"feedTimeout"`
	NetworkIdle       time.Duration `yaml:"networkIdle"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	FallbackDelay     time.Duration `yaml:"fallbackDelay"`
	SettleDelay       time.Duration `yaml:"settleDelay"`
	DiagnosticsDir    string        `yaml:"diagnosticsDir"`
}

// StoreConfig points at the spreadsheet web app.
type StoreConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig selects and configures the language model backend.
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	CallsPerSecond float64       `yaml:"callsPerSecond"`
	Gemini         GeminiConfig  `yaml:"gemini"`
	ChatGPT        ChatGPTConfig `yaml:"chatgpt"`
}

// GeminiConfig names the models used for each task.
type GeminiConfig struct {
	APIKey       string `yaml:"apiKey"`
	BaseURL      string `yaml:"baseURL"`
	InsightModel string `yaml:"insightModel"`
	WriterModel  string `yaml:"writerModel"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	WriterModel  string        `yaml:"writerModel"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SchedulerConfig defines when workflows run on their own. Empty specs disable a job.
type SchedulerConfig struct {
	ScrapeCron   string         `yaml:"scrapeCron"`
	GenerateCron string         `yaml:"generateCron"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Enabled reports whether any cron job is configured.
func (s SchedulerConfig) Enabled() bool {
	return s.ScrapeCron != "" || s.GenerateCron != ""
}

// DatabaseConfig describes where run history is kept. An empty DSN keeps it in memory.
type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	HistorySize int    `yaml:"historySize"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SlackConfig wires the bot used for run summaries.
type SlackConfig struct {
	BotToken  string `yaml:"botToken"`
	ChannelID string `yaml:"channelId"`
	APIURL    string `yaml:"apiUrl"`
}

// Enabled reports whether both token and channel are set.
func (s SlackConfig) Enabled() bool {
	return s.BotToken != "" && s.ChannelID != ""
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env, the YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	path := os.Getenv(configPathEnv)
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides(getenv)
	cfg.bindTimezone()
	return cfg
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(emailEnv, &c.Community.Email)
	set(passwordEnv, &c.Community.Password)
	if v := getenv(communityURLsEnv); strings.TrimSpace(v) != "" {
		c.Community.URLs = SplitList(v)
	}

	set(apiKeyEnv, &c.Server.APIKey)
	if v := getenv(portEnv); v != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Server.Port = port
		} else {
			log.Printf("config: ignoring invalid %s=%q", portEnv, v)
		}
	}

	set(storeEndpointEnv, &c.Store.Endpoint)

	set(llmProviderEnv, &c.LLM.Provider)
	set(geminiAPIKeyEnv, &c.LLM.Gemini.APIKey)
	set(chatGPTAPIKeyEnv, &c.LLM.ChatGPT.APIKey)
	set(chatGPTModelEnv, &c.LLM.ChatGPT.Model)

	set(databaseDSNEnv, &c.Database.DSN)

	set(telegramTokenEnv, &c.Notifications.Telegram.BotToken)
	set(telegramChatIDEnv, &c.Notifications.Telegram.ChatID)
	set(slackTokenEnv, &c.Notifications.Slack.BotToken)
	set(slackChannelEnv, &c.Notifications.Slack.ChannelID)

	set(logLevelEnv, &c.Logging.Level)
	set(logFormatEnv, &c.Logging.Format)

	set(scrapeCronEnv, &c.Scheduler.ScrapeCron)
	set(generateCronEnv, &c.Scheduler.GenerateCron)

	set(chromePathEnv, &c.Browser.ExecPath)
	if v := getenv(headlessEnv); v != "" {
		if headless, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Browser.Headless = headless
		} else {
			log.Printf("config: ignoring invalid %s=%q", headlessEnv, v)
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Validate reports every missing or malformed setting required to run.
func (c Config) Validate() error {
	var errs []error

	if _, err := mail.ParseAddress(c.Community.Email); err != nil || !strings.Contains(c.Community.Email, "@") {
		errs = append(errs, fmt.Errorf("%s: invalid email address", emailEnv))
	}
	if c.Community.Password == "" {
		errs = append(errs, fmt.Errorf("%s: password cannot be empty", passwordEnv))
	}
	if len(c.Community.URLs) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one community url is required", communityURLsEnv))
	}
	for _, raw := range c.Community.URLs {
		if u, err := url.Parse(raw); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: %q is not an https url", communityURLsEnv, raw))
		}
	}
	if c.Community.PostLimit <= 0 {
		errs = append(errs, errors.New("community.postLimit must be positive"))
	}

	if u, err := url.Parse(c.Store.Endpoint); err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s: invalid web app url", storeEndpointEnv))
	}
	if len(c.Server.APIKey) < minSecretLength {
		errs = append(errs, fmt.Errorf("%s: must be at least %d characters", apiKeyEnv, minSecretLength))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s: port %d out of range", portEnv, c.Server.Port))
	}

	switch c.LLM.Provider {
	case ProviderGemini:
		if len(c.LLM.Gemini.APIKey) < minSecretLength {
			errs = append(errs, fmt.Errorf("%s: invalid api key", geminiAPIKeyEnv))
		}
	case ProviderChatGPT:
		if c.LLM.ChatGPT.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s: required for provider %s", chatGPTAPIKeyEnv, ProviderChatGPT))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: unknown provider %q", llmProviderEnv, c.LLM.Provider))
	}
	if c.LLM.CallsPerSecond <= 0 {
		errs = append(errs, errors.New("llm.callsPerSecond must be positive"))
	}

	return errors.Join(errs...)
}

// SplitList parses a comma-separated list, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Server: ServerConfig{Port: 3000, ShutdownTimeout: 10 * time.Second},
		Community: CommunityConfig{
			LoginURL:        "https://www.skool.com/login",
			PostLimit:       20,
			RecentCacheSize: 1024,
		},
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			WindowWidth:       1280,
			WindowHeight:      800,
			NavigationTimeout: 60 * time.Second,
			FeedTimeout:       30 * time.Second,
			NetworkIdle:       time.Second,
			IdleTimeout:       5 * time.Second,
			FallbackDelay:     2 * time.Second,
			SettleDelay:       500 * time.Millisecond,
			DiagnosticsDir:    "diagnostics",
		},
		Store: StoreConfig{Timeout: 30 * time.Second},
		LLM: LLMConfig{
			Provider:       ProviderGemini,
			CallsPerSecond: 1,
			Gemini: GeminiConfig{
				InsightModel: "gemini-2.5-flash",
				WriterModel:  "gemini-2.5-pro",
			},
			ChatGPT: ChatGPTConfig{
				Endpoint:     "https://api.openai.com/v1/chat/completions",
				Model:        "gpt-4o-mini",
				SystemPrompt: "You analyse online community discussions and write helpful posts.",
				Timeout:      60 * time.Second,
			},
		},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
		Database:  DatabaseConfig{HistorySize: 100},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Browser connection modes.
const (
	BrowserModeCDP    = "cdp"
	BrowserModeLaunch = "launch"
)

// Config is the whole application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Browser      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Conversation ConversationConfig `mapstructure:"conversation" yaml:"conversation"`
	Selectors    SelectorsConfig    `mapstructure:"selectors" yaml:"selectors"`
	Artifacts    ArtifactsConfig    `mapstructure:"artifacts" yaml:"artifacts"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Scenarios    ScenariosConfig    `mapstructure:"scenarios" yaml:"scenarios"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the terminal color used for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how the browser is reached and driven.
type BrowserConfig struct {
	// Mode is "cdp" (attach to a running browser) or "launch".
	Mode           string        `mapstructure:"mode" yaml:"mode"`
	CDPURL         string        `mapstructure:"cdp_url" yaml:"cdp_url"`
	StartURL       string        `mapstructure:"start_url" yaml:"start_url"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	UserDataDir    string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Channel        string        `mapstructure:"channel" yaml:"channel"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	// NewContext forces a dedicated browser context per run in cdp mode.
	NewContext bool   `mapstructure:"new_context" yaml:"new_context"`
	VideoDir   string `mapstructure:"video_dir" yaml:"video_dir"`
	Label      string `mapstructure:"label" yaml:"label"`
}

// LLMConfig configures the chat-completion client.
type LLMConfig struct {
	APIKey              string        `mapstructure:"api_key" yaml:"-"`
	BaseURL             string        `mapstructure:"base_url" yaml:"base_url"`
	Model               string        `mapstructure:"model" yaml:"model"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MessageMaxTokens    int           `mapstructure:"message_max_tokens" yaml:"message_max_tokens"`
	MessageTemperature  float32       `mapstructure:"message_temperature" yaml:"message_temperature"`
	ClassifyMaxTokens   int           `mapstructure:"classify_max_tokens" yaml:"classify_max_tokens"`
	ClassifyTemperature float32       `mapstructure:"classify_temperature" yaml:"classify_temperature"`
	FallbackResponses   []string      `mapstructure:"fallback_responses" yaml:"fallback_responses"`
}

// ConversationConfig bounds and paces the multi-turn loop.
type ConversationConfig struct {
	MaxTurns        int           `mapstructure:"max_turns" yaml:"max_turns"`
	FallbackTurnCap int           `mapstructure:"fallback_turn_cap" yaml:"fallback_turn_cap"`
	CannedResponses []string      `mapstructure:"canned_responses" yaml:"canned_responses"`
	Settle          SettleConfig  `mapstructure:"settle" yaml:"settle"`
	SubmitPause     time.Duration `mapstructure:"submit_pause" yaml:"submit_pause"`
}

// SettleConfig drives the polled "page stopped changing" check.
type SettleConfig struct {
	MinWait    time.Duration `mapstructure:"min_wait" yaml:"min_wait"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	QuietPolls int           `mapstructure:"quiet_polls" yaml:"quiet_polls"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SelectorsConfig holds the prioritized candidate lists probed on the chat UI.
// Agent candidates may use the {{AGENT}} and {{AGENT_SLUG}} placeholders.
type SelectorsConfig struct {
	AllAgents    []string      `mapstructure:"all_agents" yaml:"all_agents"`
	Search       []string      `mapstructure:"search" yaml:"search"`
	Agent        []string      `mapstructure:"agent" yaml:"agent"`
	ChatInput    []string      `mapstructure:"chat_input" yaml:"chat_input"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	InputTimeout time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
	StepPause    time.Duration `mapstructure:"step_pause" yaml:"step_pause"`
	ResultsWait  time.Duration `mapstructure:"results_wait" yaml:"results_wait"`
}

// ArtifactsConfig says where screenshots, summaries and reports go.
type ArtifactsConfig struct {
	ScreenshotsDir string   `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
	SummaryDir     string   `mapstructure:"summary_dir" yaml:"summary_dir"`
	ReportOutputs  []string `mapstructure:"report_outputs" yaml:"report_outputs"`
	Template       string   `mapstructure:"template" yaml:"template"`
	FullPage       bool     `mapstructure:"full_page" yaml:"full_page"`
}

// MetricsConfig configures the optional node-exporter textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// ScenariosConfig is the catalogue used by "run --all".
type ScenariosConfig struct {
	Concurrency int        `mapstructure:"concurrency" yaml:"concurrency"`
	List        []Scenario `mapstructure:"list" yaml:"list"`
}

// Scenario is one agent/prompt combination.
type Scenario struct {
	Agent       string `mapstructure:"agent" yaml:"agent"`
	Prompt      string `mapstructure:"prompt" yaml:"prompt"`
	Description string `mapstructure:"description" yaml:"description"`
}

// Title is the human label used in summaries and reports.
func (s Scenario) Title() string {
	if s.Description != "" {
		return fmt.Sprintf("%s - %s", s.Agent, s.Description)
	}
	return s.Agent
}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "agent-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.mode", BrowserModeCDP)
	v.SetDefault("browser.cdp_url", "http://localhost:9222")
	v.SetDefault("browser.start_url", "https://m365.cloud.microsoft/chat/?internalredirect=CCM&auth=2")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", ".playwright_data")
	v.SetDefault("browser.channel", "")
	v.SetDefault("browser.default_timeout", "60s")
	v.SetDefault("browser.new_context", false)
	v.SetDefault("browser.video_dir", "")
	v.SetDefault("browser.label", "Edge with existing session")

	// -- LLM --
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.message_max_tokens", 150)
	v.SetDefault("llm.message_temperature", 0.7)
	v.SetDefault("llm.classify_max_tokens", 10)
	v.SetDefault("llm.classify_temperature", 0.3)
	v.SetDefault("llm.fallback_responses", []string{
		"Can you tell me more about that?",
		"That's interesting! Could you elaborate?",
		"What would be the next step?",
		"How would I apply this in practice?",
		"Thank you! Is there anything else I should know?",
	})

	// -- Conversation --
	v.SetDefault("conversation.max_turns", 5)
	v.SetDefault("conversation.fallback_turn_cap", 4)
	v.SetDefault("conversation.canned_responses", []string{
		"Can you provide more details about that?",
		"How would I implement this in practice?",
		"Are there alternative approaches to consider?",
		"Can you summarize the key takeaways?",
		"Thank you! Is there anything else important I should know?",
	})
	v.SetDefault("conversation.settle.min_wait", "2s")
	v.SetDefault("conversation.settle.interval", "1s")
	v.SetDefault("conversation.settle.quiet_polls", 3)
	v.SetDefault("conversation.settle.timeout", "60s")
	v.SetDefault("conversation.submit_pause", "1s")

	// -- Selectors --
	v.SetDefault("selectors.all_agents", []string{
		`text="All agents"`,
		`[href*="agents"]`,
		`a:has-text("All agents")`,
		`button:has-text("All agents")`,
		`a[data-testid*="all-agents"]`,
	})
	v.SetDefault("selectors.search", []string{
		`input[placeholder*="Search agents"]`,
		`input[placeholder*="search"]`,
		`[data-testid*="search"]`,
		`input[type="search"]`,
		`.search-input`,
		`#search-agents`,
	})
	v.SetDefault("selectors.agent", []string{
		`div:has-text("{{AGENT}}"):not(:has-text("search")):visible`,
		`button:has-text("{{AGENT}}")`,
		`[data-testid*="{{AGENT_SLUG}}"]`,
		`.agent-card:has-text("{{AGENT}}")`,
		`.search-suggestion:has-text("{{AGENT}}")`,
		`text="{{AGENT}}"`,
		`:is(button, a, div[role="button"], [tabindex]):has-text("{{AGENT}}")`,
		`div:has(img) + div:has-text("{{AGENT}}")`,
		`div:has([data-testid*="icon"]):has-text("{{AGENT}}")`,
	})
	v.SetDefault("selectors.chat_input", []string{
		`textarea[placeholder*="message"]`,
		`textarea[placeholder*="Message Copilot"]`,
		`input[type="text"]`,
		`textarea`,
		`#chat-input`,
		`[data-testid*="chat-input"]`,
		`[role="textbox"]`,
		`div[contenteditable="true"]`,
		`[contenteditable="true"]`,
	})
	v.SetDefault("selectors.probe_timeout", "5s")
	v.SetDefault("selectors.input_timeout", "10s")
	v.SetDefault("selectors.step_pause", "2s")
	v.SetDefault("selectors.results_wait", "10s")

	// -- Artifacts --
	v.SetDefault("artifacts.screenshots_dir", "screenshots")
	v.SetDefault("artifacts.summary_dir", "test-results/conversation-summary")
	v.SetDefault("artifacts.report_outputs", []string{
		"test-results/conversation-test-report.html",
		"conversation-test-report.html",
	})
	v.SetDefault("artifacts.template", "")
	v.SetDefault("artifacts.full_page", true)

	// -- Metrics --
	v.SetDefault("metrics.textfile", "")

	// -- Scenarios --
	v.SetDefault("scenarios.concurrency", 1)
	v.SetDefault("scenarios.list", []map[string]any{
		{"agent": "Prompt Coach", "prompt": "Help me write a professional email about project updates", "description": "Test Prompt Coach with email writing request"},
		{"agent": "Researcher", "prompt": "What are the latest trends in artificial intelligence?", "description": "Test Researcher with AI trends question"},
		{"agent": "Analyst", "prompt": "Analyze the performance metrics for our Q4 sales data", "description": "Test Analyst with data analysis request"},
	})
}

// BindEnv wires the environment onto v: AGENT_TESTER_* for every key and
// the conventional OPENAI_API_KEY for the credential.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("AGENT_TESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "AGENT_TESTER_LLM_API_KEY", "OPENAI_API_KEY")
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Mode {
	case BrowserModeCDP:
		if c.Browser.CDPURL == "" {
			return fmt.Errorf("browser.cdp_url is required in cdp mode")
		}
	case BrowserModeLaunch:
	default:
		return fmt.Errorf("browser.mode must be %q or %q, got %q", BrowserModeCDP, BrowserModeLaunch, c.Browser.Mode)
	}
	if c.Conversation.MaxTurns <= 0 {
		return fmt.Errorf("conversation.max_turns must be a positive integer")
	}
	if c.Conversation.FallbackTurnCap < 0 {
		return fmt.Errorf("conversation.fallback_turn_cap must not be negative")
	}
	if len(c.Conversation.CannedResponses) == 0 {
		return fmt.Errorf("conversation.canned_responses must not be empty")
	}
	if len(c.LLM.FallbackResponses) == 0 {
		return fmt.Errorf("llm.fallback_responses must not be empty")
	}
	if err := c.Conversation.Settle.Validate(); err != nil {
		return fmt.Errorf("conversation.settle: %w", err)
	}
	if len(c.Selectors.ChatInput) == 0 {
		return fmt.Errorf("selectors.chat_input must list at least one candidate")
	}
	if c.Artifacts.SummaryDir == "" || c.Artifacts.ScreenshotsDir == "" {
		return fmt.Errorf("artifacts.summary_dir and artifacts.screenshots_dir are required")
	}
	if c.Scenarios.Concurrency <= 0 {
		return fmt.Errorf("scenarios.concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the settle timings.
func (s *SettleConfig) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be a positive duration")
	}
	if s.QuietPolls <= 0 {
		return fmt.Errorf("quiet_polls must be greater than 0")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	return nil
}

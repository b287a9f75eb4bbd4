package config

// Config represents the main veda configuration
type Config struct {
	// Agent loop behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Conversation context management
	Context ContextConfig `json:"context" mapstructure:"context"`

	// Session persistence
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Tool execution
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// AI provider profiles
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Workspace path tools operate in
	WorkspacePath string `json:"workspace_path" mapstructure:"workspace_path"`
}

// AgentConfig controls the model-call/tool-call loop
type AgentConfig struct {
	Model            string  `json:"model" mapstructure:"model"`
	Temperature      float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens        int     `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt     string  `json:"system_prompt" mapstructure:"system_prompt"`
	MaxRetries       int     `json:"max_retries" mapstructure:"max_retries"`
	BaseDelayMs      int     `json:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs       int     `json:"max_delay_ms" mapstructure:"max_delay_ms"`
	JitterFactor     float64 `json:"jitter_factor" mapstructure:"jitter_factor"`
	MaxIterations    int     `json:"max_iterations" mapstructure:"max_iterations"`
	MaxParallelTools int     `json:"max_parallel_tools" mapstructure:"max_parallel_tools"`
	AutoSave         bool    `json:"auto_save" mapstructure:"auto_save"`
}

// ContextConfig controls the context window sent to the model
type ContextConfig struct {
	TokenBudget      int    `json:"token_budget" mapstructure:"token_budget"`
	ReserveTokens    int    `json:"reserve_tokens" mapstructure:"reserve_tokens"`
	TruncationPolicy string `json:"truncation_policy" mapstructure:"truncation_policy"` // drop-oldest, summarize
}

// SessionConfig controls session persistence and retention
type SessionConfig struct {
	Dir         string `json:"dir" mapstructure:"dir"`
	MaxSessions int    `json:"max_sessions" mapstructure:"max_sessions"`
}

// ToolsConfig holds tool execution settings
type ToolsConfig struct {
	TimeoutSeconds int          `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Policy         PolicyConfig `json:"policy" mapstructure:"policy"`
}

// PolicyConfig defines tool access policies
type PolicyConfig struct {
	Allow []string `json:"allow" mapstructure:"allow"`
	Deny  []string `json:"deny" mapstructure:"deny"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:            "claude-sonnet-4",
			Temperature:      0.7,
			MaxTokens:        4096,
			MaxRetries:       3,
			BaseDelayMs:      1000,
			MaxDelayMs:       30000,
			JitterFactor:     0.25,
			MaxIterations:    16,
			MaxParallelTools: 4,
			AutoSave:         true,
		},
		Context: ContextConfig{
			TokenBudget:      100000,
			ReserveTokens:    8000,
			TruncationPolicy: "drop-oldest",
		},
		Session: SessionConfig{
			MaxSessions: 50,
		},
		Tools: ToolsConfig{
			TimeoutSeconds: 30,
			Policy: PolicyConfig{
				Allow: []string{"*"},
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
	}
}

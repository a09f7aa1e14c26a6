package config

import "time"

type ModelPreset struct {
	Provider    string  `mapstructure:"provider" json:"provider" validate:"required,oneof=openai anthropic googleai bedrock ollama" jsonschema:"required,enum=openai,enum=anthropic,enum=googleai,enum=bedrock,enum=ollama"`
	Name        string  `mapstructure:"name" json:"name" validate:"required" jsonschema:"required,description=Provider model identifier"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" validate:"gte=0,lte=2" jsonschema:"minimum=0,maximum=2"`
	MaxTokens   int     `mapstructure:"maxTokens" json:"maxTokens" validate:"gte=1" jsonschema:"minimum=1"`
	BaseURL     string  `mapstructure:"baseUrl" json:"baseUrl,omitempty" jsonschema:"description=Override the provider endpoint"`
}

type Server struct {
	Addr              string        `mapstructure:"addr" json:"addr" validate:"required" jsonschema:"description=Listen address for the HTTP API"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout" json:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout" json:"shutdownTimeout"`
}

// MCP holds connection settings shared by every MCP server
type MCP struct {
	AutoReconnect      bool          `mapstructure:"autoReconnect" json:"autoReconnect"`
	ConnectionTimeout  time.Duration `mapstructure:"connectionTimeout" json:"connectionTimeout" validate:"gt=0"`
	ToolTimeout        time.Duration `mapstructure:"toolTimeout" json:"toolTimeout" validate:"gt=0"`
	SessionInitTimeout time.Duration `mapstructure:"sessionInitTimeout" json:"sessionInitTimeout" validate:"gt=0"`
	ListToolsTimeout   time.Duration `mapstructure:"listToolsTimeout" json:"listToolsTimeout" validate:"gt=0"`
	MaxConcurrentTools int           `mapstructure:"maxConcurrentTools" json:"maxConcurrentTools" validate:"gte=1"`
	LogToolCalls       bool          `mapstructure:"logToolCalls" json:"logToolCalls"`
}

// MCPServer seeds the server registry at startup
type MCPServer struct {
	Description string            `mapstructure:"description" json:"description,omitempty"`
	Command     []string          `mapstructure:"command" json:"command" validate:"required,min=1" jsonschema:"required,description=Executable and leading arguments"`
	Args        []string          `mapstructure:"args" json:"args,omitempty"`
	Env         map[string]string `mapstructure:"env" json:"env,omitempty"`
	Category    string            `mapstructure:"category" json:"category,omitempty"`
	AutoConnect bool              `mapstructure:"autoConnect" json:"autoConnect,omitempty"`
	Disabled    bool              `mapstructure:"disabled" json:"disabled,omitempty"`
}

type Chat struct {
	HistoryContext int           `mapstructure:"historyContext" json:"historyContext" validate:"gte=0" jsonschema:"description=Number of past messages sent as context"`
	HistoryMax     int           `mapstructure:"historyMax" json:"historyMax" validate:"gte=1" jsonschema:"description=History length that triggers trimming"`
	HistoryKeep    int           `mapstructure:"historyKeep" json:"historyKeep" validate:"gte=1,ltefield=HistoryMax" jsonschema:"description=History length kept after trimming"`
	MaxToolRounds  int           `mapstructure:"maxToolRounds" json:"maxToolRounds" validate:"gte=0"`
	TurnTimeout    time.Duration `mapstructure:"turnTimeout" json:"turnTimeout" validate:"gt=0"`
	CollapseDelay  time.Duration `mapstructure:"collapseDelay" json:"collapseDelay"`
	HistoryLimit   int           `mapstructure:"historyLimit" json:"historyLimit" validate:"gte=1" jsonschema:"description=Number of tool calls returned by the history endpoint"`
}

type Log struct {
	LogLevel   string `mapstructure:"logLevel" json:"logLevel" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	LogFile    string `mapstructure:"logFile" json:"logFile,omitempty"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" json:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups" json:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" json:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

type Metrics struct {
	Enabled  bool          `mapstructure:"enabled" json:"enabled"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
}

// Keys are provider credentials, normally supplied through the environment
type Keys struct {
	OpenAI    string `mapstructure:"openai" json:"openai,omitempty"`
	Anthropic string `mapstructure:"anthropic" json:"anthropic,omitempty"`
	Gemini    string `mapstructure:"gemini" json:"gemini,omitempty"`
}

type ConfigSchema struct {
	ActiveModel  string                 `mapstructure:"activeModel" json:"activeModel" validate:"required" jsonschema:"required,description=Key of the model preset used by new chat sessions"`
	ModelPresets map[string]ModelPreset `mapstructure:"modelPresets" json:"modelPresets" validate:"required,min=1,dive" jsonschema:"required"`
	SystemPrompt string                 `mapstructure:"systemPrompt" json:"systemPrompt"`
	Server       Server                 `mapstructure:"server" json:"server"`
	MCP          MCP                    `mapstructure:"mcp" json:"mcp"`
	MCPServers   map[string]MCPServer   `mapstructure:"mcpServers" json:"mcpServers,omitempty" validate:"dive"`
	Chat         Chat                   `mapstructure:"chat" json:"chat"`
	Log          Log                    `mapstructure:"log" json:"log"`
	Metrics      Metrics                `mapstructure:"metrics" json:"metrics"`
	KeyMap       KeyMap                 `mapstructure:"keyMap" json:"keyMap"`
	Keys         Keys                   `mapstructure:"keys" json:"keys,omitempty"`
	DBPath       string                 `mapstructure:"dbPath" json:"dbPath" validate:"required"`

	// Internal fields for printing
	settings map[string]interface{}
	sources  map[string][]configSource
}

// ActivePreset returns the preset selected by ActiveModel
func (s *ConfigSchema) ActivePreset() ModelPreset {
	return s.ModelPresets[s.ActiveModel]
}

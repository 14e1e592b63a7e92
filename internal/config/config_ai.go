package config

import "fmt"

// Operation names one generation operation
type Operation string

const (
	OpAnalysis  Operation = "analysis"
	OpChat      Operation = "chat"
	OpMarket    Operation = "market"
	OpSalary    Operation = "salary"
	OpInterview Operation = "interview"
	OpSenior    Operation = "senior"
	OpDecoder   Operation = "decoder"
	OpRedFlags  Operation = "redFlags"
)

// Operations lists every generation operation
var Operations = []Operation{OpAnalysis, OpChat, OpMarket, OpSalary, OpInterview, OpSenior, OpDecoder, OpRedFlags}

// operationConfig returns a pointer to the raw operation section
func (c *Config) operationConfig(op Operation) (*OperationAIConfig, error) {
	switch op {
	case OpAnalysis:
		return &c.AI.Analysis, nil
	case OpChat:
		return &c.AI.Chat, nil
	case OpMarket:
		return &c.AI.Market, nil
	case OpSalary:
		return &c.AI.Salary, nil
	case OpInterview:
		return &c.AI.Interview, nil
	case OpSenior:
		return &c.AI.Senior, nil
	case OpDecoder:
		return &c.AI.Decoder, nil
	case OpRedFlags:
		return &c.AI.RedFlags, nil
	default:
		return nil, fmt.Errorf("unknown AI operation: %s", op)
	}
}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		useSystem := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystem
	}
}

// ForOperation returns the AI configuration for op with fallback to the global config.
// Prompts loaded from files take precedence over inline prompts.
func (c *Config) ForOperation(op Operation) (OperationAIConfig, error) {
	raw, err := c.operationConfig(op)
	if err != nil {
		return OperationAIConfig{}, err
	}

	cfg := *raw
	c.applyOperationDefaults(&cfg)

	if loaded, ok := c.Prompts().Get(op); ok {
		if loaded.System != "" {
			cfg.CustomPrompts.System = loaded.System
		}
		if loaded.User != "" {
			cfg.CustomPrompts.User = loaded.User
		}
	}

	return cfg, nil
}

// applyGeminiKey applies the Gemini API key to every operation without its own key
func (c *Config) applyGeminiKey(key string) {
	c.AI.APIKey = key
	for _, op := range Operations {
		if opCfg, err := c.operationConfig(op); err == nil && opCfg.APIKey == "" {
			opCfg.APIKey = key
		}
	}
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

type operationDefaults struct {
	timeout     time.Duration
	maxRetries  int
	temperature float64
}

// Per-operation defaults. The primary analysis produces the largest document
// and gets the longest timeout.
var defaultOperations = map[Operation]operationDefaults{
	OpAnalysis:  {timeout: 180 * time.Second, maxRetries: 2, temperature: 0.4},
	OpChat:      {timeout: 60 * time.Second, maxRetries: 1, temperature: 0.7},
	OpMarket:    {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.5},
	OpSalary:    {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.6},
	OpInterview: {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.6},
	OpSenior:    {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.5},
	OpDecoder:   {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.3},
	OpRedFlags:  {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.3},
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 2)
	v.SetDefault("ai.temperature", 0.5)
	v.SetDefault("ai.useSystemPrompts", true)
	v.SetDefault("ai.watchPromptFiles", false)

	for op, d := range defaultOperations {
		prefix := "ai." + string(op)
		v.SetDefault(prefix+".provider", "gemini")
		v.SetDefault(prefix+".model", "")
		v.SetDefault(prefix+".timeout", d.timeout)
		v.SetDefault(prefix+".apiKey", "")
		v.SetDefault(prefix+".maxRetries", d.maxRetries)
		v.SetDefault(prefix+".temperature", d.temperature)
		v.SetDefault(prefix+".useSystemPrompts", true)

		v.SetDefault(prefix+".circuitBreaker.enabled", true)
		v.SetDefault(prefix+".circuitBreaker.maxRequests", 3)
		v.SetDefault(prefix+".circuitBreaker.interval", 60*time.Second)
		v.SetDefault(prefix+".circuitBreaker.timeout", 60*time.Second)
		v.SetDefault(prefix+".circuitBreaker.minRequests", 3)
		v.SetDefault(prefix+".circuitBreaker.failureThreshold", 0.6)
	}

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 90*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.language", "es")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB, PDFs travel base64 encoded
	v.SetDefault("app.sessionTTL", 2*time.Hour)
	v.SetDefault("app.maxSessions", 1000)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.pollInterval", 5*time.Minute)
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "postulamatch")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}

// Package config defines the application configuration loaded from
// environment variables.
package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config files for
// details on available environment variables:
//   - redis.go: coordination store configuration
//   - http.go: HTTP server configuration
//   - queue.go: queue, drainer, health, and delivery configuration
//   - services.go: service mode configuration
//   - observability.go: metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior. Set DEV=true for development.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Coordination store configuration
	Redis RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Queue policy and drainer configuration
	Queue    QueueConfig    `envPrefix:"QUEUE_"`
	Drainer  DrainerConfig  `envPrefix:"DRAINER_"`
	Health   HealthConfig   `envPrefix:"HEALTH_"`
	Delivery DeliveryConfig `envPrefix:"DELIVERY_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,drainer"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Queue.Sanitize()
	c.Drainer.Sanitize()
	c.Health.Sanitize()
	c.Delivery.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsDrainerEnabled returns true if the drain runner service is enabled.
func (c *AppConfig) IsDrainerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeDrainer]
}

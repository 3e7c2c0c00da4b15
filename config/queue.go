package config

import "time"

// QueueConfig contains the retry and retention policy for the notification queue.
type QueueConfig struct {
	// Key is the sorted-set key holding live jobs.
	Key string `env:"KEY" envDefault:"email_queue"`

	// MaxAttempts is the retry budget per job.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`

	// RetryUnit is the linear backoff unit: delay = attempts * RetryUnit.
	RetryUnit time.Duration `env:"RETRY_UNIT" envDefault:"1m"`

	// RecordTTL is how long terminal sent/failed records are retained.
	RecordTTL time.Duration `env:"RECORD_TTL" envDefault:"24h"`

	// Retention bounds how long a live entry may linger before cleanup.
	Retention time.Duration `env:"RETENTION" envDefault:"24h"`
}

// Sanitize applies guardrails to queue configuration values.
func (c *QueueConfig) Sanitize() {
	if c.Key == "" {
		c.Key = "email_queue"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryUnit <= 0 {
		c.RetryUnit = time.Minute
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = 24 * time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
}

// DrainerConfig contains drain runner configuration.
type DrainerConfig struct {
	// BatchSize is the number of jobs pulled per drain pass.
	BatchSize int64 `env:"BATCH_SIZE" envDefault:"10"`

	// SendTimeout bounds each individual delivery attempt.
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`

	// Interval between scheduled drain passes.
	Interval time.Duration `env:"INTERVAL" envDefault:"30s"`

	// CleanupSpec is a standard cron expression for the stale-entry sweep.
	CleanupSpec string `env:"CLEANUP_SPEC" envDefault:"0 3 * * *"`
}

// Sanitize applies guardrails to drainer configuration values.
func (c *DrainerConfig) Sanitize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.CleanupSpec == "" {
		c.CleanupSpec = "0 3 * * *"
	}
}

// HealthConfig contains store health monitor configuration.
type HealthConfig struct {
	// CacheInterval is how long a probe result (success or failure) is reused.
	CacheInterval time.Duration `env:"CACHE_INTERVAL" envDefault:"60s"`

	// ProbeTimeout bounds the liveness probe itself.
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" envDefault:"1s"`
}

// Sanitize applies guardrails to health monitor configuration values.
func (c *HealthConfig) Sanitize() {
	if c.CacheInterval <= 0 {
		c.CacheInterval = 60 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = time.Second
	}
}

// DeliveryConfig contains email delivery backend configuration.
type DeliveryConfig struct {
	// APIKey authenticates against the email API.
	APIKey string `env:"API_KEY"`

	// APIURL overrides the email API endpoint (useful for tests).
	APIURL string `env:"API_URL"`

	// From is the default sender address.
	From string `env:"FROM" envDefault:"noreply@alliancechemical.com"`

	// Timeout bounds each HTTP call to the email API.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to delivery configuration values.
func (c *DeliveryConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

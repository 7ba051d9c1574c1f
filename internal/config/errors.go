package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidProxyAddress is returned when the Tor proxy is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid tor proxy address: must be host:port")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Zero uses the fetcher default.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidMinLevel is returned when the alert level is not one of
	// low, medium, high or critical.
	ErrInvalidMinLevel = errors.New("invalid alert min level: must be low, medium, high or critical")

	// ErrInvalidInterval is returned when a rescan interval is not positive or
	// a riskier level is not rescanned strictly more often.
	ErrInvalidInterval = errors.New("invalid rescan intervals: must be positive and decrease as risk increases")

	// ErrInvalidWorkers is returned when the scheduler worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid scheduler workers: must be positive")

	// ErrInvalidSMTPPort is returned when the SMTP port is out of range.
	ErrInvalidSMTPPort = errors.New("invalid smtp port: must be 1-65535")

	// ErrInvalidListenAddress is returned when the listen address is not host:port.
	ErrInvalidListenAddress = errors.New("invalid listen address: must be host:port")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidEnv is returned when an environment override cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment override")
)

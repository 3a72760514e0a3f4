package config

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	// Enabled turns span export on. Disabled by default: the pipeline runs
	// fine without a collector.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Endpoint is the OTLP HTTP collector endpoint, host:port.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

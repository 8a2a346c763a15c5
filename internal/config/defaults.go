package config

// Defaults returns the configuration spec §6/§4.D/§4.E state as their
// defaults before a YAML file is applied over them.
func Defaults() *Config {
	return &Config{
		Post: PostConfig{
			Enabled:                true,
			Method:                 "POST",
			Path:                   "/records",
			TimeoutMs:              8000,
			Retries:                5,
			RetryDelayMs:           500,
			RetryBackoffMultiplier: 2,
			QueueDrainMaxPerTick:   5,
			Headers:                map[string]string{"Content-Type": "application/json"},
		},
		Decoder: DecoderConfig{
			Reconnect: ReconnectConfig{
				BaseDelayMs:      1000,
				MaxDelayMs:       30000,
				BackoffFactor:    1.8,
				JitterRatio:      0.2,
				ConnectTimeoutMs: 8000,
			},
		},
		Defaults: DefaultsConfig{
			Mode:          "tcp",
			TCPHost:       "127.0.0.1",
			TCPPort:       5403,
			UDPListenPort: 5303,
		},
		QueuePath: "./data/queue.json",
		StatusAPI: StatusAPIConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8088",
		},
	}
}

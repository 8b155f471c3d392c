package config

import "time"

// defaults returns the baseline configuration. User YAML overrides these
// field by field; anything left unset after the merge keeps these values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     Duration(30 * time.Minute),
		},
		Dataset: DatasetConfig{
			CacheDir: "/tmp/shipmentqa-dataset",
			Object:   "master.parquet",
		},
		Retrieval: RetrievalConfig{
			Host:   "localhost:8090",
			Scheme: "http",
			Class:  "Shipment",
			Alpha:  0.5,
		},
		Analytics: AnalyticsConfig{
			Timeout:  Duration(3 * time.Second),
			RowCap:   500,
			GroupCap: 5000,
		},
		Graph: GraphConfig{
			TurnTimeout:       Duration(60 * time.Second),
			JudgeRetryCeiling: 2,
			ReplanCeiling:     1,
			SearchLimit:       10,
		},
	}
}

package config

// ResourcesConfig gives a rule's resources attribute its defaults (spec
// §4.2 rsrcs_crc default case) and bounds the host-wide workload token
// budget internal/backend.Workload enforces (spec §8 property 6,
// "workload conservation").
type ResourcesConfig struct {
	DefaultCPU    int   `yaml:"default_cpu"`
	DefaultMemMB  int   `yaml:"default_mem_mb"`
	DefaultTokens int   `yaml:"default_tokens"`
	MemPerTokenMB int64 `yaml:"mem_per_token_mb"`
}

// DefaultResourcesConfig matches internal/backend.DefaultResources so a
// rule declaring no resources attribute behaves identically whether or not
// lmake.yaml overrides this section.
func DefaultResourcesConfig() ResourcesConfig {
	return ResourcesConfig{
		DefaultCPU:    1,
		DefaultMemMB:  512,
		DefaultTokens: 1,
		MemPerTokenMB: 512,
	}
}

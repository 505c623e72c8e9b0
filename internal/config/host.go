package config

// HostConfig holds per-host overrides for crawl behavior.
// This allows customizing politeness and scope for individual sites in
// a multi-seed crawl.
type HostConfig struct {
	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// DelaySeconds overrides the global politeness delay for this host.
	// Zero means use the global setting.
	DelaySeconds float64 `yaml:"delaySeconds,omitempty"`

	// Level overrides the global recursion limit for this host.
	// Zero means use the global setting.
	Level int `yaml:"level,omitempty"`

	// IgnorePatterns are URL path glob patterns to skip on this host.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict this host's crawl to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .webmirror configuration file.
type File struct {
	// Hosts maps hostnames to their overrides (e.g., "example.com").
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Defaults contains overrides applied to every host unless a
	// host-specific entry replaces them.
	Defaults HostConfig `yaml:"defaults,omitempty"`
}

// GetHostConfig returns the configuration for a host, merging the
// host-specific entry over the defaults.
func (cf *File) GetHostConfig(host string) HostConfig {
	result := cf.Defaults

	if hc, ok := cf.Hosts[host]; ok {
		if hc.DelaySeconds != 0 {
			result.DelaySeconds = hc.DelaySeconds
		}
		if hc.Level != 0 {
			result.Level = hc.Level
		}
		if len(hc.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range hc.Headers {
				result.Headers[k] = v
			}
		}
		if len(hc.IgnorePatterns) > 0 {
			result.IgnorePatterns = hc.IgnorePatterns
		}
		if len(hc.FollowPatterns) > 0 {
			result.FollowPatterns = hc.FollowPatterns
		}
	}

	return result
}

package persistence

const defaultPrefix = "stores/"

// Config holds persistence initialization parameters.
type Config struct {
	Path   string `json:"path,omitempty"`   // FileStorage root directory; empty disables persistence.
	Prefix string `json:"prefix,omitempty"` // Key prefix for store entries.
}

// DefaultConfig returns the default persistence configuration (disabled).
func DefaultConfig() Config {
	return Config{Prefix: defaultPrefix}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
}

// NewStorage creates a Storage from configuration. Returns nil Storage when
// Path is empty, indicating persistence is disabled.
func NewStorage(cfg *Config) Storage {
	if cfg.Path == "" {
		return nil
	}
	return NewFileStorage(cfg.Path)
}

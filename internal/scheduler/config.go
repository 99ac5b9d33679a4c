package scheduler

// Config sizes the loop's task queue.
type Config struct {
	QueueSize int
}

func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	return c
}

package dispatch

// DefaultUnboundRankBase ranks circuits without a registry class behind every
// class of a typical configuration.
const DefaultUnboundRankBase = 100

// Config defines how circuits are tied to priority classes.
type Config struct {
	// Circuits maps a circuit id (e.g. "MCB_1") to a registry class name.
	Circuits map[string]string `json:"circuits"`
	// UnboundRankBase is added to the numeric suffix of circuits that are not
	// bound to any class. Nil selects DefaultUnboundRankBase; an explicit 0 is
	// kept.
	UnboundRankBase *int `json:"unbound_rank_base"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.UnboundRankBase == nil {
		base := DefaultUnboundRankBase
		c.UnboundRankBase = &base
	}
}

// RankBase returns the configured unbound rank base.
func (c Config) RankBase() int {
	if c.UnboundRankBase == nil {
		return DefaultUnboundRankBase
	}
	return *c.UnboundRankBase
}

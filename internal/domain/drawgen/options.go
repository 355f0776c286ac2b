package drawgen

// Option configures a Generator.
type Option func(*Generator)

// WithSeed fixes the tie-breaking randomness. Zero keeps a time-based seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		if seed != 0 {
			g.seed = seed
		}
	}
}

// WithSwapPasses bounds the clash-reducing swap pass.
func WithSwapPasses(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.swapPasses = n
		}
	}
}

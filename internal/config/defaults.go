package config

import "pokeflow/internal/model"

// DefaultConfig returns the built-in defaults. The PokeAPI values are a
// convenience for the common case; any paginated JSON API works by
// overriding source settings.
func DefaultConfig() *Config {
	return &Config{
		Source: model.Source{
			BaseURL:     "https://pokeapi.co/api/v2",
			Endpoint:    "pokemon",
			ResultsPath: "results",
			NextPath:    "next",
		},
		Fetch: model.Fetch{
			RetryCount:     3,
			TimeoutSeconds: 10,
			PageLimit:      0, // unlimited
			Prefetch:       1,
		},
		Normalize: model.Normalize{
			ExpandLists:   false,
			CoerceStrings: false,
		},
	}
}

package domain

// KeyPrefix namespaces every key this service writes to the KV store.
// Overridden once from storage.key_prefix at startup.
var KeyPrefix = "simproj:"

// VectorConfig holds the model and HNSW defaults. Clients never see it.
type VectorConfig struct {
	Model       string
	Dimensions  int
	M           int
	EFConstruct int
	// EFRuntime is the query-time candidate pool (numCandidates).
	EFRuntime int
}

// DefaultVectorConfig returns defaults for all-MiniLM-L6-v2 served behind an
// OpenAI-compatible endpoint.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:       "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions:  384,
		M:           32,
		EFConstruct: 400,
		EFRuntime:   100,
	}
}

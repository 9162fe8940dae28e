package domain

// Chunk is a bounded-length piece of a source document, scoped to the
// namespace of the request that indexed it.
type Chunk struct {
	ID        string
	Namespace string
	Text      string
	Embedding []float32
}

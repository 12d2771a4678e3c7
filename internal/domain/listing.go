package domain

// RawListing is one upstream listing in its source's native shape.
// No schema is enforced; only the Normalizer interprets Fields.
type RawListing struct {
	Source Source
	Fields map[string]any
}

// NewRawListing wraps a decoded upstream object.
func NewRawListing(source Source, fields map[string]any) RawListing {
	if fields == nil {
		fields = map[string]any{}
	}
	return RawListing{Source: source, Fields: fields}
}

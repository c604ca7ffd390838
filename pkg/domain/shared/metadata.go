package shared

// Metadata is an opaque key-value bag attached to entities. Values are only
// stored and echoed back; the domain never interprets them.
type Metadata = map[string]any

// CopyMetadata returns a shallow copy so callers cannot mutate entity state
// through a returned map.
func CopyMetadata(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MergeMetadata overlays updates onto base, returning the merged map.
// A nil base is treated as empty.
func MergeMetadata(base, updates Metadata) Metadata {
	out := make(Metadata, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

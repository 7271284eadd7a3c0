package event

// DefaultChunkSize is the number of runes per chunk event.
const DefaultChunkSize = 50

// Chunk splits content into slices of at most size runes. Concatenating the
// slices yields the original content. Empty content yields no chunks.
func Chunk(content string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(content)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

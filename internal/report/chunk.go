package report

import "fmt"

// DefaultChunkLimit is Telegram's message size ceiling, with headroom.
const DefaultChunkLimit = 4000

// Chunk splits text into delivery-sized pieces on line boundaries. When
// more than one chunk results, each is prefixed "[i/n] " so receivers can
// reassemble in order. A single line longer than the limit is hard-split.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	runes := []rune(text)
	if len(runes) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	// Reserve room for the "[i/n] " prefix.
	const prefixReserve = 10
	body := limit - prefixReserve

	var chunks []string
	var current []rune
	for _, line := range splitLines(runes) {
		// Hard-split a single overlong line.
		for len(line) > body {
			if len(current) > 0 {
				chunks = append(chunks, string(current))
				current = nil
			}
			chunks = append(chunks, string(line[:body]))
			line = line[body:]
		}
		if len(current)+len(line)+1 > body {
			if len(current) > 0 {
				chunks = append(chunks, string(current))
			}
			current = nil
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, line...)
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}

	if len(chunks) <= 1 {
		return chunks
	}
	for i := range chunks {
		chunks[i] = fmt.Sprintf("[%d/%d] %s", i+1, len(chunks), chunks[i])
	}
	return chunks
}

func splitLines(runes []rune) [][]rune {
	var lines [][]rune
	start := 0
	for i, r := range runes {
		if r == '\n' {
			lines = append(lines, runes[start:i])
			start = i + 1
		}
	}
	lines = append(lines, runes[start:])
	return lines
}

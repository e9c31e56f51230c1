package corpus

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Chunk is a window of a document's text
type Chunk struct {
	DocID string `json:"doc_id"`
	Seq   int    `json:"seq"`
	Text  string `json:"text"`
}

// Split cuts text into windows of at most size runes that overlap by overlap
// runes. A window ends at the last whitespace inside it when there is one in
// its second half.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			for cut := end; cut > start+size/2; cut-- {
				if unicode.IsSpace(runes[cut]) {
					end = cut
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Index holds the chunks of every ingested document
type Index struct {
	mu      sync.RWMutex
	docs    map[string][]Chunk
	size    int
	overlap int
}

// NewIndex creates an index that splits documents with the given window
func NewIndex(chunkSize, overlap int) *Index {
	return &Index{docs: make(map[string][]Chunk), size: chunkSize, overlap: overlap}
}

// Add replaces the chunks of docID with the windows of text. It returns the
// number of chunks stored.
func (ix *Index) Add(docID, text string) int {
	parts := Split(text, ix.size, ix.overlap)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{DocID: docID, Seq: i, Text: p}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(chunks) == 0 {
		delete(ix.docs, docID)
		return 0
	}
	ix.docs[docID] = chunks
	return len(chunks)
}

// Documents returns the number of indexed documents
func (ix *Index) Documents() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Terms extracts the distinct lower-cased words of at least three runes
func Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// Retrieve returns up to k chunks ranked by how many distinct query terms
// they contain. Ties keep document id then chunk order. Chunks matching no
// term are never returned.
func (ix *Index) Retrieve(query string, k int) []Chunk {
	terms := Terms(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	type hit struct {
		chunk Chunk
		score int
	}

	ix.mu.RLock()
	ids := make([]string, 0, len(ix.docs))
	for id := range ix.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var hits []hit
	for _, id := range ids {
		for _, c := range ix.docs[id] {
			lowered := strings.ToLower(c.Text)
			score := 0
			for _, term := range terms {
				if strings.Contains(lowered, term) {
					score++
				}
			}
			if score > 0 {
				hits = append(hits, hit{chunk: c, score: score})
			}
		}
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out
}

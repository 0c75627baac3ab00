package types

// MaxResults is the hard ceiling on results returned by any search path
const MaxResults = 100

// DedupPrefixRunes is how much of a result's content takes part in the
// hybrid de-duplication key
const DedupPrefixRunes = 50

// Origin identifies which retrieval path produced a result
type Origin string

const (
	OriginSemantic    Origin = "semantic"
	OriginKeyword     Origin = "keyword"
	OriginUnavailable Origin = "unavailable"
)

// SearchResult is a single retrieved passage.
//
// Score is "lower is better" for both origins: cosine distance for semantic
// results and BM25 for keyword results. The two scales are not comparable.
type SearchResult struct {
	Content  string   `json:"content"`
	Source   string   `json:"source"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
	Origin   Origin   `json:"origin"`

	// Plain holds the unhighlighted content when Content carries markup
	Plain string `json:"-"`
}

// Text returns the content without highlight markup
func (r *SearchResult) Text() string {
	if r.Plain != "" {
		return r.Plain
	}
	return r.Content
}

// DedupKey identifies results that describe the same passage: the source
// plus the first DedupPrefixRunes runes of the plain content.
func (r *SearchResult) DedupKey() string {
	text := []rune(r.Text())
	if len(text) > DedupPrefixRunes {
		text = text[:DedupPrefixRunes]
	}
	return r.Source + "\x00" + string(text)
}

// Clone returns a deep copy of r
func (r SearchResult) Clone() SearchResult {
	r.Metadata = r.Metadata.Clone()
	return r
}

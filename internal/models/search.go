package models

// KeyKind classifies a search key.
type KeyKind string

const (
	KeyKindPassport KeyKind = "passport" // exact match on normalized passport
	KeyKindName     KeyKind = "name"     // normalized substring match
)

// SearchResult is the tagged outcome for one search key. A key with no
// matches yields Found=false with an empty Records slice; this is a
// first-class result, not an error, so batch callers can report partial
// misses without aborting.
type SearchResult struct {
	Key     string    `json:"key"`
	Kind    KeyKind   `json:"kind"`
	Found   bool      `json:"found"`
	Records []*Record `json:"records,omitempty"`
}

// NotFound builds the explicit not-found marker for a key.
func NotFound(key string, kind KeyKind) SearchResult {
	return SearchResult{Key: key, Kind: kind, Found: false, Records: []*Record{}}
}

package capabilities

// Item is one research hit.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// ResearchResult is the data of the research capability.
type ResearchResult struct {
	Query string `json:"query"`
	Items []Item `json:"items"`
}

// Selection is the data of the decide capability.
type Selection struct {
	Items     []Item `json:"items"`
	Indices   []int  `json:"indices"`
	Rationale string `json:"rationale,omitempty"`
}

// Piece is one generated piece of content.
type Piece struct {
	ItemTitle string `json:"item_title"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	SourceURL string `json:"source_url,omitempty"`
}

// Key identifies a piece within one run. Titles alone may repeat.
func (p Piece) Key() string {
	return p.ItemTitle + "\x00" + p.SourceURL + "\x00" + p.Title
}

// Content is the data of the generate capability.
type Content struct {
	Pieces []Piece   `json:"pieces"`
	Failed []Failure `json:"failed,omitempty"`
}

// Failure names an item that could not be processed.
type Failure struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

// Document is one built HTML document.
type Document struct {
	ID    string `json:"id"`
	Key   string `json:"key"` // Piece.Key of the source piece
	Title string `json:"title"`
	HTML  string `json:"html"`
	Path  string `json:"path,omitempty"`
}

// BuildResult is the data of the build capability.
type BuildResult struct {
	Documents []Document `json:"documents"`
}

// SaveReport is the data of the save capability.
type SaveReport struct {
	Saved  []string  `json:"saved"`
	Failed []Failure `json:"failed,omitempty"`
}

package models

// IndexResult is the backend response to POST /index-pdf.
type IndexResult struct {
	Message   string `json:"message,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	PageCount int    `json:"page_count"`
	Status    string `json:"status,omitempty"`
	FileID    string `json:"file_id,omitempty"`
	ID        string `json:"id,omitempty"`
}

// RemoteID returns the backend file identifier. Backends that do not assign one
// are addressed by the stored filename.
func (r *IndexResult) RemoteID() string {
	switch {
	case r.FileID != "":
		return r.FileID
	case r.ID != "":
		return r.ID
	default:
		return r.Filename
	}
}

// GenerateRequest is the body of POST /generate-response.
type GenerateRequest struct {
	Messages    []Message `json:"messages"`
	TopSearches int       `json:"top_searches,omitempty"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// RetrievedVerse is a retrieved passage as the backend encodes it.
type RetrievedVerse struct {
	Content   string `json:"content"`
	Reference string `json:"reference"`
}

// GenerateResponse is the backend response to POST /generate-response.
type GenerateResponse struct {
	Response        string           `json:"response"`
	Context         string           `json:"context,omitempty"`
	RetrievedVerses []RetrievedVerse `json:"retrievedVerses,omitempty"`
}

// References converts the retrieved passages; the result is never nil.
func (r *GenerateResponse) References() []Reference {
	return toReferences(r.RetrievedVerses)
}

// FindResponse is the backend response to GET /find.
type FindResponse struct {
	Results []RetrievedVerse `json:"results"`
}

// References converts the find results; the result is never nil.
func (r *FindResponse) References() []Reference {
	return toReferences(r.Results)
}

func toReferences(verses []RetrievedVerse) []Reference {
	out := make([]Reference, 0, len(verses))
	for _, v := range verses {
		out = append(out, Reference{Content: v.Content, Label: v.Reference})
	}
	return out
}

package pipeline_type

// SystemStats are aggregate document counts for the stats endpoint.
type SystemStats struct {
	TotalDocuments int `json:"total_documents"`
	Processed      int `json:"processed"`
	Failed         int `json:"failed"`
	Processing     int `json:"processing"`
}

// DocumentMetadata is filled from whatever is known at upload time. File
// uploads only learn their word and token counts once the pipeline has
// extracted the text.
type DocumentMetadata struct {
	WordCount      int    `json:"word_count,omitempty"`
	TokenCount     int    `json:"token_count,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
}

type UploadResponse struct {
	Message    string           `json:"message"`
	DocumentID int64            `json:"document_id"`
	JobID      int64            `json:"job_id,omitempty"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Metadata   DocumentMetadata `json:"metadata"`
}

// SearchRequest scopes the semantic search to one document when DocID is
// set.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	DocID int64  `json:"doc_id,omitempty"`
}

type SearchResult struct {
	DocID      int64   `json:"doc_id"`
	ChunkID    int64   `json:"chunk_id"`
	ChunkNo    int     `json:"chunk_no"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

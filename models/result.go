package models

// OperationResult is returned by mutating operations that have no payload.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IndexResult reports the outcome of writing one slice to the index.
type IndexResult struct {
	Success      bool   `json:"success"`
	DocumentID   string `json:"documentId,omitempty"`
	ChapterTitle string `json:"chapterTitle,omitempty"`
	HasVector    bool   `json:"hasVector"`
	Error        string `json:"error,omitempty"`
}

// BatchIndexResult aggregates IndexResults of a multi-slice write.
type BatchIndexResult struct {
	Success      bool          `json:"success"`
	IndexedCount int           `json:"indexedCount"`
	FailedCount  int           `json:"failedCount"`
	Results      []IndexResult `json:"results"`
	Errors       []string      `json:"errors,omitempty"`
}

// DeleteResult reports a delete-by-file run. Success is false whenever any
// batch reported an error, but the counts always reflect what happened.
type DeleteResult struct {
	Success      bool     `json:"success"`
	FileName     string   `json:"fileName"`
	TenantID     string   `json:"tenantId,omitempty"`
	FoundCount   int      `json:"foundCount"`
	DeletedCount int      `json:"deletedCount"`
	BatchCount   int      `json:"batchCount"`
	Message      string   `json:"message,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

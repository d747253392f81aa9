package models

// KnowledgeSource is a named container on the platform holding trained
// content for one chatbot. Sources are scoped to the active team.
type KnowledgeSource struct {
	Alias         string `json:"knowledge_source_alias"`
	Name          string `json:"name"`
	DocumentCount int    `json:"document_count,omitempty"`
	StorageSize   int64  `json:"storage_size,omitempty"`
	CrawlType     string `json:"crawl_type,omitempty"`
	LLMType       string `json:"llm_type,omitempty"`
}

// Channel is a messaging endpoint through which the chatbot is exposed,
// e.g. the web widget.
type Channel struct {
	Alias    string `json:"alias"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// Team is the tenant-scoping boundary; knowledge sources and channels
// belong to the currently active team.
type Team struct {
	ID    string `json:"team_id"`
	Alias string `json:"team_alias"`
	Name  string `json:"team_name"`
}

// TrainingEntry is one crawled/ingested item inside a knowledge source.
type TrainingEntry struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status,omitempty"`
}

package models

// Chunk types.
const (
	ChunkTypeText    = "text"
	ChunkTypeScanned = "ocr"
)

// Chunk is one positioned slice of page text ready for embedding.
type Chunk struct {
	TenderID     string `bson:"tender_id" json:"tenderId"`
	DocumentName string `bson:"document_name" json:"documentName"`
	Page         int    `bson:"page" json:"page"`
	// Position is the paragraph index on the page; SubPosition splits long paragraphs.
	Position    int    `bson:"position" json:"position"`
	SubPosition int    `bson:"sub_position" json:"subPosition"`
	Type        string `bson:"type" json:"type"`
	IsScanned   bool   `bson:"is_scanned" json:"isScanned"`
	Text        string `bson:"text" json:"text"`
}

// EmbeddedChunk is a Chunk paired with its vector, as stored.
type EmbeddedChunk struct {
	Chunk     `bson:",inline"`
	Embedding []float32 `bson:"embedding" json:"embedding"`
}

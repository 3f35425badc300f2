package config

// Settings is the full set of knobs shared by the tender functions and the CLI.
type Settings struct {
	ProjectID string

	// Object storage: a GCS bucket in the cloud, or a local directory for tenderctl.
	DocumentsBucket string
	DocumentsDir    string

	ProgressBackend      string
	FirestoreDatabase    string
	FormsCollection      string
	DocsStatusCollection string
	BadgerDir            string

	MongoURI          string
	DBName            string
	TendersCollection string
	VectorCollection  string
	ChunkBackend      string
	SQLitePath        string

	ImageBackend    string
	TextBackend     string
	GroqAPIKey      string
	GroqModel       string
	GroqBaseURL     string
	DeepSeekAPIKey  string
	DeepSeekModel   string
	DeepSeekBaseURL string
	VertexRegion    string
	VertexModel     string

	EmbeddingBackend     string
	OpenAIAPIKey         string
	EmbeddingModel       string
	OllamaEmbeddingModel string
	EmbeddingBatchSize   int

	ImageConcurrency int
	TextConcurrency  int
	PageErrorBudget  int

	WorkflowID       string
	WorkflowLocation string
	MinTenderValue   float64
}

// Load reads every setting from the environment and the optional config file.
func Load() Settings {
	return Settings{
		ProjectID: GetEnv("PROJECT_ID", ""),

		DocumentsBucket: GetEnv("DOCUMENTS_BUCKET", ""),
		DocumentsDir:    GetEnv("DOCUMENTS_DIR", ""),

		ProgressBackend:      GetEnv("PROGRESS_BACKEND", "firestore"),
		FirestoreDatabase:    GetEnv("FIRESTORE_DATABASE", ""),
		FormsCollection:      GetEnv("FORMS_COLLECTION", "tender_forms"),
		DocsStatusCollection: GetEnv("DOCS_STATUS_COLLECTION", "tender_documents_status"),
		BadgerDir:            GetEnv("BADGER_DIR", ".tenderflow/progress"),

		MongoURI:          GetEnv("MONGO_URI", ""),
		DBName:            GetEnv("DB_NAME", "tenders"),
		TendersCollection: GetEnv("TENDERS_COLLECTION", "tenders"),
		VectorCollection:  GetEnv("VECTOR_COLLECTION", "tender_chunks"),
		ChunkBackend:      GetEnv("CHUNK_BACKEND", "mongo"),
		SQLitePath:        GetEnv("SQLITE_PATH", ".tenderflow/chunks.db"),

		ImageBackend:    GetEnv("IMAGE_BACKEND", "groq"),
		TextBackend:     GetEnv("TEXT_BACKEND", "deepseek"),
		GroqAPIKey:      GetEnv("GROQ_API_KEY", ""),
		GroqModel:       GetEnv("GROQ_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
		GroqBaseURL:     GetEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		DeepSeekAPIKey:  GetEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:   GetEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekBaseURL: GetEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		VertexRegion:    GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:     GetEnv("VERTEX_MODEL", "gemini-1.5-flash"),

		EmbeddingBackend:     GetEnv("EMBEDDING_BACKEND", "openai"),
		OpenAIAPIKey:         GetEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:       GetEnv("EMBEDDING_MODEL", "text-embedding-3-large"),
		OllamaEmbeddingModel: GetEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingBatchSize:   GetEnvInt("EMBEDDING_BATCH_SIZE", 2048),

		ImageConcurrency: GetEnvInt("IMAGE_CONCURRENCY", 4),
		TextConcurrency:  GetEnvInt("TEXT_CONCURRENCY", 8),
		PageErrorBudget:  GetEnvInt("PAGE_ERROR_BUDGET", 3),

		WorkflowID:       GetEnv("WORKFLOW_ID", "tender-processing-orchestrator"),
		WorkflowLocation: GetEnv("WORKFLOW_LOCATION", "us-central1"),
		MinTenderValue:   GetEnvFloat("MIN_TENDER_VALUE", 0),
	}
}

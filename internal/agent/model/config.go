package model

// ================ Config ================
type ConversationConfig struct {
	MaxMessages        int    `envconfig:"CONVERSATION_MAX_MESSAGES" default:"20"`
	TurnTimeout        string `envconfig:"CONVERSATION_TURN_TIMEOUT" default:"60s"`
	ClarificationLimit int    `envconfig:"CONVERSATION_CLARIFICATION_LIMIT" default:"3"`
	History            struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"10"`
	}
}

type ClassifyModelConfig struct {
	Model       string  `envconfig:"CLASSIFY_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CLASSIFY_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"CLASSIFY_TEMPERATURE" default:"0"`
}

type PlannerModelConfig struct {
	Model       string  `envconfig:"PLANNER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"PLANNER_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"PLANNER_TEMPERATURE" default:"0"`
}

type PlanningConfig struct {
	AllowedCities []string `envconfig:"PLANNING_ALLOWED_CITIES" default:"kathmandu,pokhara,chitwan,lumbini,nagarkot"`
	RetrievalTopK int      `envconfig:"PLANNING_RETRIEVAL_TOP_K" default:"3"`
}

type PolicyConfig struct {
	Filename  string `envconfig:"POLICY_FILENAME" default:"company_info.txt"`
	RetrieveK int    `envconfig:"POLICY_RETRIEVE_K" default:"6"`
	RerankK   int    `envconfig:"POLICY_RERANK_K" default:"3"`
}

type EmbeddingConfig struct {
	BaseURL   string `envconfig:"EMBEDDING_BASE_URL" default:"http://localhost:11434"`
	Model     string `envconfig:"EMBEDDING_MODEL" default:"all-mpnet-base-v2"`
	Dimension int    `envconfig:"EMBEDDING_DIMENSION" default:"768"`
	CacheTTL  string `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`
}

type RankingConfig struct {
	Endpoint string `envconfig:"RANKING_ENDPOINT"`
	Model    string `envconfig:"RANKING_MODEL" default:"cross-encoder/ms-marco-MiniLM-L6-v2"`
	Workers  int    `envconfig:"RANKING_WORKERS" default:"2"`
}

type QdrantConfig struct {
	BaseURL    string `envconfig:"QDRANT_BASE_URL" default:"http://localhost:6333"`
	Collection string `envconfig:"QDRANT_COLLECTION" default:"tour-planner"`
}

type PostgresConfig struct {
	URL string `envconfig:"POSTGRES_URL"`
}

type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
}

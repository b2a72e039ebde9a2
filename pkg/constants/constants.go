package constants

type contextKey string

const (
	PoolKey      contextKey = "pool"
	TxKey        contextKey = "tx"
	LoggerKey    contextKey = "logger"
	ProjectIDKey contextKey = "projectID"
)

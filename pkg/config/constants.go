package config

// EnvPrefix is the envconfig prefix for all service variables.
const EnvPrefix = "PLATEFUL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names, used by tests and DSN fallback errors.
const (
	EnvAppEnv   = "PLATEFUL_APP_ENV"
	EnvPort     = "PLATEFUL_APP_PORT"
	EnvDBDSN    = "PLATEFUL_DB_DSN"
	EnvDBHost   = "PLATEFUL_DB_HOST"
	EnvDBUser   = "PLATEFUL_DB_USER"
	EnvDBName   = "PLATEFUL_DB_NAME"
	EnvRedisURL = "PLATEFUL_REDIS_URL"

	EnvGCPProjectID      = "PLATEFUL_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "PLATEFUL_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "PLATEFUL_PUBSUB_ORDERS_SUBSCRIPTION"

	EnvSquareAccessToken = "PLATEFUL_SQUARE_ACCESS_TOKEN"
	EnvSquareWebhookKey  = "PLATEFUL_SQUARE_WEBHOOK_SIGNATURE_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

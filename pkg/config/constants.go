package config

// EnvPrefix is passed to envconfig; individual fields override it with
// explicit CASILLERO_* names.
const EnvPrefix = "CASILLERO"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "CASILLERO_APP_ENV"
	EnvPort   = "CASILLERO_APP_PORT"

	EnvDBDSN  = "CASILLERO_DB_DSN"
	EnvDBHost = "CASILLERO_DB_HOST"
	EnvDBUser = "CASILLERO_DB_USER"
	EnvDBName = "CASILLERO_DB_NAME"
)

var partDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

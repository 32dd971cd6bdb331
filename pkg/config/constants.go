package config

// EnvPrefix is the envconfig prefix shared by all HiveCRM services.
const EnvPrefix = "hivecrm"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "HIVECRM_DB_DSN"
	EnvDBHost = "HIVECRM_DB_HOST"
	EnvDBUser = "HIVECRM_DB_USER"
	EnvDBName = "HIVECRM_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

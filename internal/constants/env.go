// Package constants provides centralized definitions of constants used throughout the application
package constants

// Environment variable names
const (
	// EnvProcessorSecretKey is the environment variable containing the payment processor API secret key
	EnvProcessorSecretKey = "ESCROW_PROCESSOR_SECRET_KEY"

	// EnvOnboardingReturnURL is the environment variable containing the URL agencies land on after processor onboarding
	EnvOnboardingReturnURL = "ESCROW_ONBOARDING_RETURN_URL"

	// EnvOnboardingRefreshURL is the environment variable containing the URL agencies land on when an onboarding link expires
	EnvOnboardingRefreshURL = "ESCROW_ONBOARDING_REFRESH_URL"

	// EnvServerPort is the environment variable containing the API listen port
	EnvServerPort = "ESCROW_SERVER_PORT"

	// EnvServerAddress is the environment variable containing the API server address used by the CLI
	EnvServerAddress = "ESCROW_SERVER_ADDRESS"

	// EnvDBHost is the environment variable containing the database host
	EnvDBHost = "DB_HOST"

	// EnvDBPort is the environment variable containing the database port
	EnvDBPort = "DB_PORT"

	// EnvDBUser is the environment variable containing the database user
	EnvDBUser = "DB_USER"

	// EnvDBPassword is the environment variable containing the database password
	EnvDBPassword = "DB_PASSWORD"

	// EnvDBName is the environment variable containing the database name
	EnvDBName = "DB_NAME"
)

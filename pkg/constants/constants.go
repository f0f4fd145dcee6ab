package constants

const (
	AppName      = "rookie"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "ROOKIE"

	DefaultTimezone = "Europe/Copenhagen"
	DefaultLocale   = "da-DK"
	DefaultCurrency = "dkk"
)

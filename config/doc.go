// Package config loads filterkit configuration.
//
// It uses Viper to read config.yml, godotenv to load .env files, and maps
// prefixed environment variables onto nested keys:
//
//	var cfg MyConfig
//	err := config.LoadConfig("filterkit", &cfg)
//
// FILTERKIT_ADMIN_ADDR overrides admin.addr, FILTERKIT_LOGGING_LEVEL
// overrides logging.level.
package config

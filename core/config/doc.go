// Package config provides configuration management for the access-code
// synchronization service.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Log: Logging level and format
//   - Database: MySQL connection details
//   - Redis: Response cache and distributed lock backend
//   - Pindora: Remote API credentials, timeout, and cache TTL
//   - Tasks: Background task queue connection and retry policy
//   - Notifier: Access-code availability event publishing
//   - Jobs: Reconciliation job interval, timeout, lock TTL, and batch size
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config

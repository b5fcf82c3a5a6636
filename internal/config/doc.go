// Package config loads the turn service configuration from environment
// variables.
//
// Every value has a default suitable for local development except the
// optional DATABASE_URL, REDIS_URL, DAGO_API_KEY and AGENTS_FILE.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config

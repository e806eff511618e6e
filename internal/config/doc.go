// Package config defines configuration structures for the tlcfetch CLI.
//
// Configuration can be provided via, in increasing precedence:
//   - Built-in defaults
//   - YAML configuration file
//   - Environment variables (TLCFETCH_ prefix)
//   - Command-line flags
//
// Flags and environment variables share the keys listed in [Keys] and are
// applied with [Config.Set]. Lists use the same text forms everywhere:
// "yellow,green", "2019,2020", "1-12" or "1,3,5".
//
// # YAML
//
//	types: yellow,green
//	years: "2019,2020"
//	months: "1-12"
//	dest: data
//	workers: 6
//	upload: true
//	storage:
//	  scheme: gs
//	  bucket: datazoomcamp-hw3-bucket
//	  credentials: /path/to/service-account.json
//	retry:
//	  attempts: 3
//	  backoff: 5s
//	upload_retry:
//	  attempts: 3
//	  backoff: 5s
//	log_level: info
//	metrics_addr: ":9090"
package config

// Package config provides configuration loading for the Millstream processor.
//
// Configuration comes from three layers, each overriding the previous:
//
//  1. Hardcoded defaults (suitable for local development)
//  2. A YAML file (configs/config.yaml by default)
//  3. Environment variables (MILLSTREAM_SECTION_KEY)
//
// Secrets (broker credentials, store token) should be supplied via
// environment variables rather than committed to the YAML file.
//
// Validation is strict: a missing store token or broker host is a startup
// failure, not a degraded mode. The processor never runs partially configured.
package config

// Package config holds the metricsd configuration.
//
// Values are resolved in layers, each overriding the one before:
//
//  1. Defaults (Default)
//  2. A YAML file (LoadFile)
//  3. METRICSD_* environment variables (ApplyEnv)
//  4. Command line flags, applied by the cli package with Set
//
// Sources records which layer last set each key, using the YAML key names.
//
// Example file:
//
//	host: 0.0.0.0
//	port: 1256
//	logLevel: info
//	runtimeInterval: 15s
//	executionBuckets: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5]
package config

// Package appconfig loads binary configuration from YAML, the environment and an
// optional .env file, and maps it onto goSession types.
//
// Priority, highest first: process environment, .env (never overrides the process
// environment), the YAML file named by the caller or CONFIG_PATH, then defaults.
package appconfig

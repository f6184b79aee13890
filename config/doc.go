// Package config loads settings for the demonstration client and the SQL
// host with viper.
//
// Precedence (highest to lowest):
//  1. CLI flags bound with BindFlags
//  2. Environment variables (VPTREE_ENGINE, VPTREE_QUERY_K, ...)
//  3. Config file (toml or yaml)
//  4. Defaults from NewDefaultConfig
package config

// Package config loads gokb configuration from a YAML file with
// environment overrides.
//
// Lookup order, last one wins:
//  1. built-in defaults
//  2. the YAML file (--config, or ./gokb.yaml when present)
//  3. GOKB_* environment variables
//
// Every index file lives under data_dir unless its path is set explicitly:
//
//	data_dir/
//	  embedding_cache.json   persistent embedding cache
//	  vectors/               chromem-go collection files
//	  knowledge_fts.db       SQLite FTS5 keyword index
//
// Example:
//
//	data_dir: ./kb
//	embedding:
//	  provider: siliconflow
//	  model: BAAI/bge-large-zh-v1.5
//	  timeout: 30s
//	search:
//	  default_limit: 10
//	  cache_ttl: 1h
package config

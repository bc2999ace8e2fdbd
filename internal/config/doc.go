// Package config handles configuration loading for agentlite.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package provides validation, duration parsing, and layered
// deployment overlays.
//
// # Layered Overlays
//
// LoadLayered merges up to three files, later layers overriding earlier
// ones key by key:
//
//	config/config.yaml                  # base
//	config/{env}/config.yaml            # environment overlay
//	config/{env}/{namespace}/config.yaml # namespace overlay
//
// Missing overlay files are skipped. Nested maps merge; scalar values are
// replaced outright.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	models:
//	  qwen:
//	    api_key: "${OPENAI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	session:
//	  request_timeout: "30s"
//	  bridge_grace: "10s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"   # websocket and API
//	  max_dispatch: 256           # concurrent command handlers
//
// Database:
//
//	database:
//	  path: "data/agentlite.db"
//
// Models and agents:
//
//	models:
//	  qwen:
//	    provider: "openai"        # openai-compatible endpoint, or "echo"
//	    model_name: "qwen2.5:7b"
//	    base_url: "http://localhost:11434/v1"
//	    api_key: "${OPENAI_API_KEY}"
//	agents:
//	  helper:
//	    system_prompt: "You are a helpful assistant."
//	    model: "qwen"
//	active_agents: ["helper"]
//
// # Validation
//
// Load validates that the HTTP address and database path are set, that
// every active agent is defined, and that every agent's model reference
// resolves.
package config

// Package config centralizes the environment-variable-driven settings
// shared by the control surface and any other process that talks to the
// same task store / artifact store / cleanup policy backends.
package config

import (
	"os"
	"strconv"
)

// RuntimeConfig is the full set of environment-derived settings a
// podcaster process needs to wire its store, artifact, and cleanup
// backends. mcpserver.Config is deliberately narrower — it's what the MCP
// server specifically consumes — but its defaults are sourced from here
// so the env-var names and fallbacks have one home.
type RuntimeConfig struct {
	Port            int
	AWSRegion       string
	DynamoDBTable   string
	S3Bucket        string
	CDNBaseURL      string
	LocalArtifactDir string
	DatabaseURL     string
	CleanupConfigPath string
	SecretPrefix    string
	MaxConcurrentTasks int
}

// Load reads RuntimeConfig from the process environment.
func Load() RuntimeConfig {
	return RuntimeConfig{
		Port:               intEnv("PORT", 8000),
		AWSRegion:          strEnv("AWS_REGION", "us-east-1"),
		DynamoDBTable:      strEnv("DYNAMODB_TABLE", "apresai-podcasts-prod"),
		S3Bucket:           strEnv("S3_BUCKET", ""),
		CDNBaseURL:         strEnv("CDN_BASE_URL", "https://podcasts.apresai.dev"),
		LocalArtifactDir:   strEnv("LOCAL_ARTIFACT_DIR", "./podcaster-artifacts"),
		DatabaseURL:        strEnv("DATABASE_URL", ""),
		CleanupConfigPath:  strEnv("CLEANUP_CONFIG_PATH", ""),
		SecretPrefix:       strEnv("SECRET_PREFIX", "/podcaster/mcp/"),
		MaxConcurrentTasks: intEnv("MAX_CONCURRENT_TASKS", 5),
	}
}

func strEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

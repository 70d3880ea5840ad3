package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadUsesDefaultsWhenUnset(t *testing.T) {
	for _, key := range []string{"PORT", "AWS_REGION", "DYNAMODB_TABLE", "S3_BUCKET", "MAX_CONCURRENT_TASKS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "apresai-podcasts-prod", cfg.DynamoDBTable)
	assert.Equal(t, "", cfg.S3Bucket)
	assert.Equal(t, 5, cfg.MaxConcurrentTasks)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_TASKS", "12")
	t.Setenv("S3_BUCKET", "my-bucket")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 12, cfg.MaxConcurrentTasks)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
}

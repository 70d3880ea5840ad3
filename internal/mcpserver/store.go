package mcpserver

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/oklog/ulid/v2"
)

// AuthStore backs the control surface's authentication and usage
// accounting: API keys, user profiles, and monthly usage rollups. Task
// lifecycle itself is persisted through store.Store, not here — this is
// what remains of the original single DynamoDB-table design once the task
// record half of it moved to internal/store.
type AuthStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewAuthStore creates a DynamoDB-backed auth store against tableName.
func NewAuthStore(client *dynamodb.Client, tableName string) *AuthStore {
	return &AuthStore{client: client, tableName: tableName}
}

// newULID generates a sortable unique ID.
func newULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

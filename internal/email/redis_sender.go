package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const mockEmailTTL = 5 * time.Minute

// subjectKinds maps subject fragments to the kind used in mock mail keys.
var subjectKinds = []struct {
	fragment string
	kind     string
}{
	{"approved", "listing_approved"},
	{"rejected", "listing_rejected"},
}

// SubjectKind classifies a subject line for mock mail lookups.
func SubjectKind(subject string) string {
	lower := strings.ToLower(subject)
	for _, k := range subjectKinds {
		if strings.Contains(lower, k.fragment) {
			return k.kind
		}
	}
	return "unknown"
}

// MockEmailKey is the Redis key a mocked message to recipient is stored under.
func MockEmailKey(recipient, kind string) string {
	return fmt.Sprintf("mockemail:%s:%s", recipient, kind)
}

// RedisSender stores messages in Redis for end-to-end tests instead of
// delivering them.
type RedisSender struct {
	client *redis.Client
	from   string
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, from string) *RedisSender {
	return &RedisSender{client: client, from: from}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	kind := SubjectKind(subject)
	emailData := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.from,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"kind":    kind,
	}
	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	for _, recipient := range to {
		key := MockEmailKey(recipient, kind)
		if err := s.client.Set(ctx, key, jsonData, mockEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		log.Printf("Mock email stored in Redis key '%s' (TTL: %v, Subject: %s)", key, mockEmailTTL, subject)
	}
	return nil
}

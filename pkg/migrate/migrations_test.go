package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestSubscriptionsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_subscriptions.sql")

	checks := []string{
		"user_id UUID NOT NULL UNIQUE",
		"expiry_date TIMESTAMPTZ NOT NULL",
		"idx_subscriptions_purchase_token",
		"DROP TABLE subscriptions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsPartialIndex(t *testing.T) {
	content := readMigration(t, "*_outbox.sql")

	checks := []string{
		"payload JSONB NOT NULL",
		"WHERE published_at IS NULL",
		"outbox_dlq",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

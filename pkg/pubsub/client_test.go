package pubsub

import (
	"context"
	"testing"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"proj", "payment-webhooks", "projects/proj/topics/payment-webhooks"},
		{"proj", " payment-webhooks ", "projects/proj/topics/payment-webhooks"},
		{"proj", "projects/other/topics/t", "projects/other/topics/t"},
		{"", "payment-webhooks", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("topic") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client returned %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	if got := clientOptions(config.GCPConfig{}, config.PubSubConfig{}); len(got) != 0 {
		t.Fatalf("expected no options without credentials, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}, config.PubSubConfig{}); len(got) != 1 {
		t.Fatalf("expected a single credentials option, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{CredentialsJSON: "{}"}, config.PubSubConfig{Endpoint: "localhost:8085"}); len(got) != 2 {
		t.Fatalf("expected endpoint and no-auth options, got %d", len(got))
	}
}

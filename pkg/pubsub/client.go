package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/plusonehq/plusone-backend/pkg/config"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Pub/Sub v2 client for the domain event topic.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var errProjectIDRequired = errors.New("gcp project id is required")

// NewClient creates a Pub/Sub v2 client and verifies the domain topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}

	if err := c.ensureTopicExists(ctx, cfg.DomainTopic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}

	return c, nil
}

func (c *Client) ensureTopicExists(ctx context.Context, name string) error {
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}

	_, err := c.client.TopicAdminClient.GetTopic(
		ctx,
		&pubsubpb.GetTopicRequest{Topic: fullName},
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", name)
		}
		return fmt.Errorf("checking topic %q: %w", name, err)
	}

	return nil
}

// Publisher returns a publisher handle for the given topic ID/resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// DomainPublisher returns the configured domain event publisher.
func (c *Client) DomainPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.DomainTopic)
}

// Ping verifies Pub/Sub connectivity by checking the domain topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureTopicExists(ctx, c.cfg.DomainTopic)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(c.projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}

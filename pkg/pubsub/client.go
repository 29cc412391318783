package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// Client wraps the Pub/Sub v2 client. Topics and subscriptions are
// provisioned outside the app; the client only checks they exist.
type Client struct {
	gcp       *pubsub.Client
	projectID string
	topics    []string
}

// NewClient connects with explicit credentials when configured, otherwise
// with application default credentials (or PUBSUB_EMULATOR_HOST).
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	topics := TopicNames(cfg)
	if len(topics) == 0 {
		return nil, errors.New("at least one pubsub topic is required")
	}

	conn, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{gcp: conn, projectID: project, topics: topics}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "topics": topics}), "pubsub client ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.CredentialsFile) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.CredentialsFile)}
	}
	return nil
}

// TopicNames returns the trimmed, non-empty topics from cfg without duplicates.
func TopicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, raw := range []string{cfg.OrdersTopic, cfg.CatalogTopic} {
		name := strings.TrimSpace(raw)
		if name == "" || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Ping checks every configured topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, name := range c.topics {
		full := TopicResourceName(c.projectID, name)
		_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		if err := missing("topic", name, err); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSubscription fails when the subscription has not been provisioned.
func (c *Client) EnsureSubscription(ctx context.Context, name string) error {
	full := SubscriptionResourceName(c.projectID, name)
	if full == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}
	_, err := c.gcp.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	return missing("subscription", name, err)
}

func missing(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Publisher returns an ordered publisher for the topic. Callers own it and
// must Stop it.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	full := TopicResourceName(c.projectID, name)
	if full == "" {
		return nil
	}
	p := c.gcp.Publisher(full)
	p.EnableMessageOrdering = true
	return p
}

// Subscriber returns a receive handle for a subscription id or resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.gcp == nil {
		return nil
	}
	full := SubscriptionResourceName(c.projectID, name)
	if full == "" {
		return nil
	}
	return c.gcp.Subscriber(full)
}

func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	return c.gcp.Close()
}

// TopicResourceName expands a topic id to projects/<p>/topics/<id>. Full
// resource names pass through unchanged.
func TopicResourceName(projectID, name string) string {
	return resourceName(projectID, "topics", name)
}

func SubscriptionResourceName(projectID, name string) string {
	return resourceName(projectID, "subscriptions", name)
}

func resourceName(projectID, kind, name string) string {
	id := strings.TrimSpace(name)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	project := strings.TrimSpace(projectID)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + id
}

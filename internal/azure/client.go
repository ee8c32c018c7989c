// Package azure wraps the ARM generic-resource client used to read and write
// the target configuration. Callers work with raw JSON bodies; SDK types stay
// inside this package.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

// Azure environment names accepted by New.
const (
	EnvironmentPublic     = "public"
	EnvironmentGovernment = "government"
)

// ResourceClient reads and writes ARM resources by id with an explicit API
// version. Writes are full-replace.
type ResourceClient interface {
	Get(ctx context.Context, resourceID, apiVersion string) (json.RawMessage, error)
	CreateOrUpdate(ctx context.Context, resourceID, apiVersion string, body json.RawMessage) (json.RawMessage, error)
}

// Client is the armresources-backed implementation.
type Client struct {
	client *armresources.Client
}

// Ensure Client implements ResourceClient.
var _ ResourceClient = (*Client)(nil)

// New creates a resource client for the given subscription using the default
// credential chain. environment selects the Azure Government or public cloud.
func New(subscriptionID, environment string) (*Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("building credential: %w", err)
	}

	opts := &arm.ClientOptions{}
	switch environment {
	case EnvironmentGovernment, "":
		opts.ClientOptions = azcore.ClientOptions{Cloud: cloud.AzureGovernment}
	case EnvironmentPublic:
		opts.ClientOptions = azcore.ClientOptions{Cloud: cloud.AzurePublic}
	default:
		return nil, fmt.Errorf("unknown azure environment %q", environment)
	}

	client, err := armresources.NewClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("building resource client: %w", err)
	}
	return &Client{client: client}, nil
}

// Get reads a resource by id.
func (c *Client) Get(ctx context.Context, resourceID, apiVersion string) (json.RawMessage, error) {
	resp, err := c.client.GetByID(ctx, resourceID, apiVersion, nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp.GenericResource)
}

// CreateOrUpdate issues a full-replace write and waits for completion.
func (c *Client) CreateOrUpdate(ctx context.Context, resourceID, apiVersion string, body json.RawMessage) (json.RawMessage, error) {
	var resource armresources.GenericResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}

	poller, err := c.client.BeginCreateOrUpdateByID(ctx, resourceID, apiVersion, resource, nil)
	if err != nil {
		return nil, err
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp.GenericResource)
}

// SubscriptionFromResourceID extracts the subscription id from a full ARM
// resource id ("/subscriptions/<id>/resourceGroups/...").
func SubscriptionFromResourceID(resourceID string) (string, error) {
	parts := strings.Split(strings.Trim(resourceID, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if strings.EqualFold(parts[i], "subscriptions") && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no subscription in resource id %q", resourceID)
}

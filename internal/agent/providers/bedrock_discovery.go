package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"

	"github.com/coreforge/agentrun/internal/agent"
)

// BedrockDiscoveryConfig controls how foundation models are listed from the
// Bedrock control plane and translated into agent.Model entries.
type BedrockDiscoveryConfig struct {
	Region               string
	ProviderFilter       []string
	DefaultContextWindow int
	DefaultMaxTokens     int
}

// BedrockModelCatalog holds the most recent foundation-model listing, kept
// fresh by RefreshLoop on the interval the caller supplies.
type BedrockModelCatalog struct {
	cfg    BedrockDiscoveryConfig
	client *bedrock.Client

	models []agent.Model
}

// NewBedrockModelCatalog builds a Bedrock control-plane client from the
// default AWS credential chain and the configured region.
func NewBedrockModelCatalog(ctx context.Context, cfg BedrockDiscoveryConfig) (*BedrockModelCatalog, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	if cfg.DefaultContextWindow <= 0 {
		cfg.DefaultContextWindow = 32000
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 4096
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockModelCatalog{
		cfg:    cfg,
		client: bedrock.NewFromConfig(awsCfg),
	}, nil
}

// Refresh calls ListFoundationModels and replaces the cached model list,
// keeping only models whose provider matches ProviderFilter (when set) and
// that support on-demand text-in/text-out inference.
func (c *BedrockModelCatalog) Refresh(ctx context.Context) error {
	out, err := c.client.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return fmt.Errorf("list bedrock foundation models: %w", err)
	}

	allowed := make(map[string]bool, len(c.cfg.ProviderFilter))
	for _, p := range c.cfg.ProviderFilter {
		allowed[strings.ToLower(strings.TrimSpace(p))] = true
	}

	models := make([]agent.Model, 0, len(out.ModelSummaries))
	for _, summary := range out.ModelSummaries {
		if len(allowed) > 0 && !allowed[strings.ToLower(stringValue(summary.ProviderName))] {
			continue
		}
		if !supportsOnDemandText(summary) {
			continue
		}
		models = append(models, agent.Model{
			ID:          stringValue(summary.ModelId),
			Name:        stringValue(summary.ModelName),
			ContextSize: c.cfg.DefaultContextWindow,
		})
	}

	c.models = models
	return nil
}

// Models returns the most recently refreshed model list.
func (c *BedrockModelCatalog) Models() []agent.Model {
	return c.models
}

// RefreshLoop calls Refresh once immediately, then again on every tick of
// interval until ctx is canceled. Errors are reported through onError
// rather than aborting the loop, since a transient AWS API failure
// shouldn't permanently stop discovery.
func (c *BedrockModelCatalog) RefreshLoop(ctx context.Context, interval time.Duration, onError func(error)) {
	if err := c.Refresh(ctx); err != nil && onError != nil {
		onError(err)
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

func supportsOnDemandText(summary types.FoundationModelSummary) bool {
	supportsOnDemand := false
	for _, mode := range summary.InferenceTypesSupported {
		if mode == types.InferenceTypeOnDemand {
			supportsOnDemand = true
			break
		}
	}
	if !supportsOnDemand {
		return false
	}
	hasText := false
	for _, modality := range summary.OutputModalities {
		if modality == types.ModelModalityText {
			hasText = true
			break
		}
	}
	return hasText
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

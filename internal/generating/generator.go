package generating

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"loopforge/internal/config"
	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/services"
	"loopforge/internal/services/llm"
)

const systemPrompt = `You create short-form looping video concepts. Respond with JSON only, in the shape
{"ideas": [{"prompt": "...", "caption": "...", "tags": ["..."], "aspect_ratio": "1:1" or "9:16"}]}.
The prompt field describes the visual scene for a diffusion model. The caption is a short
social-media caption. Tags are lowercase keywords without the # prefix.`

// Generator produces pending work items from a topic. It asks the primary
// chat-completion backend first and falls back to the secondary on failure.
type Generator struct {
	cfg      *config.Config
	primary  *llm.Client
	fallback *llm.Client
	logger   *slog.Logger
}

// New constructs the generator.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "generate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.primary == nil {
		g.primary = llm.NewClient(backendConfig(cfg, cfg.Generation.Primary))
	}
	if g.fallback == nil && strings.TrimSpace(cfg.Generation.Fallback.APIKey) != "" {
		g.fallback = llm.NewClient(backendConfig(cfg, cfg.Generation.Fallback))
	}
	return g
}

// Option customizes the generator.
type Option func(*Generator)

// WithClients overrides the backend clients (useful for tests). A nil
// fallback disables the fallback path.
func WithClients(primary, fallback *llm.Client) Option {
	return func(g *Generator) {
		g.primary = primary
		g.fallback = fallback
	}
}

func backendConfig(cfg *config.Config, backend config.Backend) llm.Config {
	return llm.Config{
		APIKey:         backend.APIKey,
		BaseURL:        backend.BaseURL,
		Model:          backend.Model,
		Temperature:    cfg.Generation.Temperature,
		MaxTokens:      cfg.Generation.MaxTokens,
		TimeoutSeconds: cfg.Generation.TimeoutSeconds,
	}
}

// ValidateEnvironment checks that the primary backend is reachable before a
// generation run burns a topic on a dead endpoint.
func (g *Generator) ValidateEnvironment(ctx context.Context) error {
	return g.primary.HealthCheck(ctx)
}

type ideaPayload struct {
	Prompt      string   `json:"prompt"`
	Caption     string   `json:"caption"`
	Tags        []string `json:"tags"`
	AspectRatio string   `json:"aspect_ratio"`
}

type ideasResponse struct {
	Ideas []ideaPayload `json:"ideas"`
}

// Generate produces count pending work items for the topic and writes them
// to the prompts directory. A batch containing any invalid idea is rejected
// in full; nothing is saved.
func (g *Generator) Generate(ctx context.Context, topic string, count int) ([]string, error) {
	if count <= 0 {
		count = g.cfg.Generation.DefaultCount
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = g.cfg.Generation.DefaultNiche
	}

	userPrompt := fmt.Sprintf("Generate %d distinct video concepts for the %q niche.", count, topic)

	content, err := g.complete(ctx, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed ideasResponse
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "generate", "parse ideas", "", err)
	}
	if len(parsed.Ideas) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "generate", "parse ideas", "backend returned no ideas", nil)
	}

	batch := make([]*items.WorkItem, 0, len(parsed.Ideas))
	for i, idea := range parsed.Ideas {
		item := items.New(idea.Prompt, idea.Caption, normalizeTags(idea.Tags), strings.TrimSpace(idea.AspectRatio))
		item.Niche = topic
		if err := item.Validate(); err != nil {
			return nil, services.Wrap(services.ErrValidation, "generate", "validate batch",
				fmt.Sprintf("idea %d of %d is invalid, rejecting the whole batch", i+1, len(parsed.Ideas)), err)
		}
		batch = append(batch, item)
	}

	saved := make([]string, 0, len(batch))
	for _, item := range batch {
		path := filepath.Join(g.cfg.Paths.PromptsDir, fmt.Sprintf("prompt_%s.json", shortID(item.Metadata.ID)))
		if err := items.SaveTo(item, path); err != nil {
			return saved, services.Wrap(services.ErrConfiguration, "generate", "save item", "", err)
		}
		saved = append(saved, path)
		g.logger.Info("work item created",
			logging.String(logging.FieldItemID, item.Metadata.ID),
			logging.String("path", path),
			logging.String("aspect_ratio", item.AspectRatio))
	}
	return saved, nil
}

func (g *Generator) complete(ctx context.Context, userPrompt string) (string, error) {
	content, err := g.primary.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err == nil {
		return content, nil
	}
	if g.fallback == nil {
		return "", services.Wrap(services.ErrExternalTool, "generate", "complete", "primary backend failed", err)
	}
	g.logger.Warn("primary backend failed, trying fallback",
		logging.String("primary_model", g.primary.Model()),
		logging.Error(err))
	content, ferr := g.fallback.CompleteJSON(ctx, systemPrompt, userPrompt)
	if ferr != nil {
		return "", services.Wrap(services.ErrExternalTool, "generate", "complete",
			fmt.Sprintf("both backends failed (primary: %v)", err), ferr)
	}
	return content, nil
}

func normalizeTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "#")))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return cleaned
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

const (
	DefaultVisionModel = "claude-haiku-4-5-20251001"
	DefaultMaxPhotos   = 4
)

// VisualSignals is what a vision model reads off listing photos.
type VisualSignals struct {
	Lighting         string   `json:"lighting"`
	RenovationSignal string   `json:"renovation_signal"`
	RoomTypes        []string `json:"room_types"`
	ConditionScore   float64  `json:"condition_score"`
	Notes            string   `json:"notes,omitempty"`
	PhotosAnalyzed   int      `json:"photos_analyzed"`
}

// VisionClient sends a prompt plus image URLs to a vision model and
// returns its text answer.
type VisionClient interface {
	Describe(ctx context.Context, prompt string, imageURLs []string) (string, error)
}

type anthropicVision struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropicVision builds a VisionClient on the Anthropic Messages API.
func NewAnthropicVision(apiKey, model string) VisionClient {
	if model == "" {
		model = DefaultVisionModel
	}
	return &anthropicVision{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 1024,
	}
}

func (a *anthropicVision) Describe(ctx context.Context, prompt string, imageURLs []string) (string, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(imageURLs)+1)
	for _, u := range imageURLs {
		blocks = append(blocks, sdk.NewImageBlock(sdk.URLImageSourceParam{URL: u}))
	}
	blocks = append(blocks, sdk.NewTextBlock(prompt))

	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", eris.Wrap(err, "visual: anthropic message")
	}

	zap.L().Debug("visual: model usage",
		zap.String("model", a.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	var b strings.Builder
	for _, c := range msg.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String(), nil
}

const visualPrompt = `You are inspecting photos of an apartment for sale.
Answer with a single JSON object and nothing else:
{"lighting": "bright|moderate|dim",
 "renovation_signal": "none|white_box|standard|designer",
 "room_types": ["kitchen", "bedroom", ...],
 "condition_score": 0-10,
 "notes": "one short sentence"}`

// VisualSource derives lighting, renovation and room-type signals from
// photos. Without a vision client it is never attempted.
type VisualSource struct {
	client    VisionClient
	maxPhotos int
}

func NewVisualSource(client VisionClient, maxPhotos int) *VisualSource {
	if maxPhotos <= 0 {
		maxPhotos = DefaultMaxPhotos
	}
	return &VisualSource{client: client, maxPhotos: maxPhotos}
}

func (s *VisualSource) Name() string    { return SourceVisual }
func (s *VisualSource) Available() bool { return s.client != nil }

// TTL is forever: a given set of photos never changes.
func (s *VisualSource) TTL() time.Duration { return cache.Forever }

func (s *VisualSource) photos(l domain.Listing) []string {
	urls := l.Media.Photos
	if len(urls) == 0 {
		urls = l.Media.LayoutPlans
	}
	if len(urls) > s.maxPhotos {
		urls = urls[:s.maxPhotos]
	}
	return urls
}

func (s *VisualSource) Key(l domain.Listing, _ domain.ClientProfile) string {
	sum := sha256.Sum256([]byte(strings.Join(s.photos(l), "\n")))
	return l.ID + ":" + hex.EncodeToString(sum[:8])
}

func (s *VisualSource) Fetch(ctx context.Context, l domain.Listing, _ domain.ClientProfile) (VisualSignals, error) {
	if !s.Available() {
		return VisualSignals{}, ErrSourceUnavailable
	}
	urls := s.photos(l)
	if len(urls) == 0 {
		return VisualSignals{}, eris.Wrap(ErrNoData, "visual: listing has no photos")
	}

	text, err := s.client.Describe(ctx, visualPrompt, urls)
	if err != nil {
		return VisualSignals{}, err
	}
	out, err := parseVisualAnswer(text)
	if err != nil {
		return VisualSignals{}, err
	}
	out.PhotosAnalyzed = len(urls)
	return out, nil
}

// parseVisualAnswer extracts the JSON object from a model answer that may
// wrap it in prose or a code fence.
func parseVisualAnswer(text string) (VisualSignals, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return VisualSignals{}, eris.Errorf("visual: no JSON object in answer %q", truncate(text, 80))
	}
	var v VisualSignals
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return VisualSignals{}, eris.Wrap(err, "visual: decode answer")
	}
	if v.ConditionScore < 0 {
		v.ConditionScore = 0
	}
	if v.ConditionScore > 10 {
		v.ConditionScore = 10
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

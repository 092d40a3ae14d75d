package vision

import (
	"context"
	"fmt"
	"strings"

	"helpdesk-rag/internal/llmservice"
	"helpdesk-rag/internal/models"

	"github.com/tmc/langchaingo/llms"
)

// Captioner produces a natural-language description of an image, used to
// substitute searchable text for non-text content. Captions land around
// 200-400 characters; that is a soft guideline enforced only through the
// prompt and max tokens, not a hard contract.
type Captioner struct {
	client *llmservice.Client
}

func NewCaptioner(client *llmservice.Client) *Captioner {
	return &Captioner{client: client}
}

// Caption describes the image at imageURL. promptHint adds domain context
// (e.g. the surrounding article title) and may be empty.
func (c *Captioner) Caption(ctx context.Context, imageURL, promptHint string) (string, error) {
	prompt := fmt.Sprintf(models.CaptionPromptTemplate, promptHint)
	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.ImageURLPart(imageURL),
				llms.TextPart(prompt),
			},
		},
	}
	res, err := c.client.GenerateContent(ctx, messages, llms.WithMaxTokens(300))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}

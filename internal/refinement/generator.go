// internal/refinement/generator.go
package refinement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketing-platform/internal/common/genai"
	"marketing-platform/internal/models"
)

// LLMGenerator produces the initial scene list through the same GenAI backend
// the analytical stages use.
type LLMGenerator struct {
	llm   genai.ContentGenerator
	model string
}

func NewLLMGenerator(llm genai.ContentGenerator, model string) *LLMGenerator {
	return &LLMGenerator{llm: llm, model: model}
}

func (g *LLMGenerator) GenerateScenes(ctx context.Context, brand models.Brand, draft models.Draft) ([]models.Scene, error) {
	brandJSON, err := json.Marshal(brand)
	if err != nil {
		return nil, err
	}
	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Generate an ordered portfolio scene list for the brand and draft below.
Respond with a JSON array of scene objects. Every scene must include a "directorConfig"
object holding its animation and timing parameters.

Brand:
%s

Draft:
%s`, brandJSON, draftJSON)

	resp, err := g.llm.GenerateContent(ctx, genai.Request{
		Model:            g.model,
		Contents:         prompt,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	var scenes []models.Scene
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &scenes); err != nil {
		return nil, fmt.Errorf("generation response is not a scene list: %w", err)
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("generation produced no scenes")
	}
	return scenes, nil
}

package chat

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/ai/configloader"
)

// DefaultSystemPrompt is used unless a prompt file is configured.
const DefaultSystemPrompt = `You are SkinSense, the skincare shopping assistant of an online beauty store.

You help customers understand their skin and choose products from the store catalog.

Rules:
- Only recommend products returned by the search_products, get_product or get_routine tools. Never invent products, prices or ingredients.
- When a customer is unsure about their skin type, call start_skin_quiz instead of guessing.
- When a customer shares their skin type, concerns or budget, call save_preferences.
- Every customer message ends with a line like [userId: ...]. Use that id for add_to_cart and save_preferences and never mention it.
- Only call add_to_cart after the customer clearly asked to add a product, with the size they chose.
- Keep answers short and friendly. Use Markdown lists for routines.
- You are not a doctor. For severe or persistent skin problems suggest seeing a dermatologist.`

// LoadSystemPrompt reads a prompt file. A .yaml or .yml file holds the prompt
// under system_prompt; any other file is the prompt text itself. An empty
// path returns the built-in prompt.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}

	var prompt string
	if configloader.IsYAML(path) {
		var file struct {
			SystemPrompt string `yaml:"system_prompt"`
		}
		if err := configloader.Load(path, &file); err != nil {
			return "", err
		}
		prompt = file.SystemPrompt
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "read system prompt %s", path)
		}
		prompt = string(raw)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}

package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mvamarnath1/interview/internal/models"
)

//go:embed templates/*.yaml
var templateFS embed.FS

const (
	ModeAnswer = "answer"

	VariantFirstQuestion = "first_question"
	VariantWithHistory   = "with_history"
)

type PromptManager struct {
	prompts map[string]map[string]string // mode -> variant -> complete prompt
}

// loaded prompt template
type PromptTemplate struct {
	BasePrompt string            `yaml:"base_prompt"`
	Variants   map[string]string `yaml:"variants"`
}

// creates a new prompt manager and loads templates
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[string]map[string]string),
	}

	if err := pm.loadPrompts(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	return pm, nil
}

// BuildPrompt fills {{.Key}} placeholders of a mode/variant template from data.
func (pm *PromptManager) BuildPrompt(mode, variant string, data map[string]string) (string, error) {
	modePrompts, exists := pm.prompts[mode]
	if !exists {
		return "", fmt.Errorf("template not found for mode: %s", mode)
	}

	prompt, exists := modePrompts[variant]
	if !exists {
		return "", fmt.Errorf("variant '%s' not found for mode '%s'", variant, mode)
	}

	// single pass, so user text containing a placeholder is left alone
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(prompt), nil
}

// BuildAnswerPrompt renders the answer prompt from the session's recent turns
// (oldest first) and the new question.
func (pm *PromptManager) BuildAnswerPrompt(turns []models.Turn, question string) (string, error) {
	if len(turns) == 0 {
		return pm.BuildPrompt(ModeAnswer, VariantFirstQuestion, map[string]string{"Question": question})
	}
	return pm.BuildPrompt(ModeAnswer, VariantWithHistory, map[string]string{
		"History":  FormatHistory(turns),
		"Question": question,
	})
}

// FormatHistory renders turns as numbered Q/A pairs.
func FormatHistory(turns []models.Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s", i+1, turn.Question, turn.Answer)
	}
	return b.String()
}

// GetTemplates returns the loaded mode names, sorted.
func (pm *PromptManager) GetTemplates() []string {
	modes := make([]string, 0, len(pm.prompts))
	for mode := range pm.prompts {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

// loadPrompts loads all YAML prompt files from the embedded filesystem
func (pm *PromptManager) loadPrompts() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var promptTemplate PromptTemplate
		if err := yaml.Unmarshal(data, &promptTemplate); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		pm.prompts[name] = make(map[string]string)

		for variant, variantPrompt := range promptTemplate.Variants {
			var fullPrompt strings.Builder
			if promptTemplate.BasePrompt != "" {
				fullPrompt.WriteString(promptTemplate.BasePrompt)
				fullPrompt.WriteString("\n")
			}
			fullPrompt.WriteString(variantPrompt)
			pm.prompts[name][variant] = fullPrompt.String()
		}
	}

	return nil
}

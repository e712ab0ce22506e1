package tts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps request languages to one provider's voice profiles
type Catalog struct {
	Default    string            `yaml:"default"`
	ByLanguage map[string]string `yaml:"by_language"`
}

// Voices is the full voice catalog keyed by provider name
type Voices struct {
	Providers map[string]Catalog `yaml:"providers"`
}

// DefaultCatalog returns the built-in voice profiles
func DefaultCatalog() Voices {
	return Voices{Providers: map[string]Catalog{
		"murf": {
			Default: "en-US-natalie",
			ByLanguage: map[string]string{
				"en": "wayne",
				"hi": "shweta",
				"es": "valeria",
				"fr": "victor",
				"de": "max",
				"it": "vera",
				"ja": "kei",
				"ko": "seo-yun",
				"pt": "pedro",
				"ru": "sofia",
				"zh": "xing",
			},
		},
		"piper": {
			Default: "en_US-lessac-medium",
			ByLanguage: map[string]string{
				"en": "en_US-lessac-medium",
				"es": "es_ES-davefx-medium",
				"fr": "fr_FR-siwis-medium",
				"de": "de_DE-thorsten-medium",
				"it": "it_IT-riccardo-x_low",
				"pt": "pt_BR-faber-medium",
				"ru": "ru_RU-irina-medium",
				"zh": "zh_CN-huayan-medium",
			},
		},
	}}
}

// LoadCatalog merges a YAML override file over the built-in catalog.
// An empty path returns the built-ins unchanged.
func LoadCatalog(path string) (Voices, error) {
	voices := DefaultCatalog()
	if path == "" {
		return voices, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Voices{}, fmt.Errorf("reading voice catalog: %w", err)
	}

	var file Voices
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Voices{}, fmt.Errorf("parsing voice catalog: %w", err)
	}

	for name, override := range file.Providers {
		merged, ok := voices.Providers[name]
		if !ok {
			merged = Catalog{}
		}
		if override.Default != "" {
			merged.Default = override.Default
		}
		if merged.ByLanguage == nil {
			merged.ByLanguage = make(map[string]string)
		}
		for lang, voice := range override.ByLanguage {
			merged.ByLanguage[lang] = voice
		}
		voices.Providers[name] = merged
	}

	return voices, nil
}

// VoiceFor resolves the voice profile for a provider and BCP-47
// language tag. Unknown languages fall back to the provider default;
// unknown providers resolve to an empty voice.
func (v Voices) VoiceFor(provider, language string) string {
	cat, ok := v.Providers[provider]
	if !ok {
		return ""
	}
	base := strings.ToLower(language)
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	if voice, ok := cat.ByLanguage[base]; ok {
		return voice
	}
	return cat.Default
}

package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"gear-rental/shared/config"
)

//go:embed locales/*.json
var locales embed.FS

type Localizer struct {
	translations map[string]map[string]string
	defaultLang  string
}

var globalLocalizer *Localizer

func Initialize(cfg *config.Config) error {
	globalLocalizer = &Localizer{
		translations: make(map[string]map[string]string),
		defaultLang:  cfg.I18n.DefaultLanguage,
	}

	for _, lang := range cfg.I18n.SupportedLanguages {
		if err := loadLanguageFile(lang); err != nil {
			return fmt.Errorf("failed to load language %s: %w", lang, err)
		}
	}

	return nil
}

func loadLanguageFile(lang string) error {
	data, err := locales.ReadFile(path.Join("locales", lang+".json"))
	if err != nil {
		return err
	}

	var translations map[string]string
	if err := json.Unmarshal(data, &translations); err != nil {
		return err
	}

	globalLocalizer.translations[lang] = translations
	return nil
}

// T translates key into lang, falling back to the default language and then
// to the key itself.
func T(lang, key string, args ...interface{}) string {
	if globalLocalizer == nil {
		return key
	}

	for _, l := range []string{lang, globalLocalizer.defaultLang} {
		if langMap, ok := globalLocalizer.translations[l]; ok {
			if translation, ok := langMap[key]; ok {
				if len(args) > 0 {
					return fmt.Sprintf(translation, args...)
				}
				return translation
			}
		}
	}

	return key
}

func IsSupported(lang string) bool {
	if globalLocalizer == nil {
		return false
	}
	_, ok := globalLocalizer.translations[lang]
	return ok
}

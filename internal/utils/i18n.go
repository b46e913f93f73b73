package utils

// Minimal server-side i18n for fixed keys. Questionnaire and prompt text
// live in the catalog; the server only translates its own essentials.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":      "ok",
		"invite.invalid": "Invalid or expired invite",
	},
	"el": {
		"health.ok":      "εντάξει",
		"invite.invalid": "Μη έγκυρη ή ληγμένη πρόσκληση",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

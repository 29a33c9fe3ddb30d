package stats

import "strings"

var languageDisplayNames = map[string]string{
	"en": "English 🇬🇧",
	"uk": "Ukrainian 🇺🇦",
	"ru": "Russian 🇷🇺",
	"de": "German 🇩🇪",
	"fr": "French 🇫🇷",
	"es": "Spanish 🇪🇸",
	"it": "Italian 🇮🇹",
	"pl": "Polish 🇵🇱",
	"pt": "Portuguese 🇵🇹",
	"nl": "Dutch 🇳🇱",
	"cs": "Czech 🇨🇿",
	"sk": "Slovak 🇸🇰",
	"bg": "Bulgarian 🇧🇬",
	"be": "Belarusian 🇧🇾",
	"tr": "Turkish 🇹🇷",
	"ar": "Arabic 🇸🇦",
	"zh": "Chinese 🇨🇳",
	"ja": "Japanese 🇯🇵",
	"ko": "Korean 🇰🇷",
	"hi": "Hindi 🇮🇳",
}

// DisplayName returns a human-readable name for an ISO 639-1 code,
// falling back to the upper-cased code for languages without one.
func DisplayName(code string) string {
	if name, ok := languageDisplayNames[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

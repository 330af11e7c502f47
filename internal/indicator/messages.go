package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording   string
	processing  string
	complete    string
	errorText   string
	tokenBanner string
	stopHint    string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording:   "Recording",
			processing:  "Analyzing your speech…",
			complete:    "Feedback ready",
			errorText:   "Failed to process speech. Try again.",
			tokenBanner: "Setup API Token First: run `speechcraft settings token` to add your SiliconFlow token.",
			stopHint:    "press Enter to stop",
		}
	}
}

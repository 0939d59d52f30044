package fortune

import "fortunegate/internal/prompts"

// decorate stamps the fortune type and the premium blur flags onto data.
// Flags are recomputed per request, so a premium user reading a cached free
// result sees it unblurred.
func decorate(data map[string]any, entry *prompts.Fortune, req Request) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["fortuneType"]; !ok {
		data["fortuneType"] = req.FortuneType
	}

	blurred := !req.IsPremium && len(entry.Premium) > 0
	data["isBlurred"] = blurred
	if blurred {
		sections := make([]any, len(entry.Premium))
		for i, s := range entry.Premium {
			sections[i] = s
		}
		data["blurredSections"] = sections
	} else {
		data["blurredSections"] = []any{}
	}
	return data
}

package taskrouter

import (
	"math"
	"regexp"
	"strings"

	"github.com/agentrt/runtime/internal/models"
)

var stepMarkerWords = []string{"then", "after", "next", "first", "second", "third", "finally", "step"}

var stepMarkerRegex = regexp.MustCompile(`\b\d+\s*[.)]\s+\w+`)

var domainKeywords = map[string][]string{
	"code": {"code", "function", "bug", "compile", "variable", "class", "algorithm"},
	"math": {"math", "equation", "integral", "derivative", "theorem", "proof", "calculate"},
	"law":  {"law", "legal", "contract", "statute", "regulation", "litigation"},
}

var realtimeWords = []string{"now", "immediately", "quick", "fast", "urgent"}

var privacyWords = []string{"private", "confidential", "secret", "personal"}

// Score computes the deterministic complexity score in [0, 10] for a
// message under the given router configuration, per the documented
// scoring table. Token count uses the approximation ceil(len/4); this is
// intentional and must not be replaced by a real tokenizer.
func Score(message string, cfg models.RouterConfig) int {
	folded := strings.ToLower(message)
	sum := 0

	tokens := int(math.Ceil(float64(len(message)) / 4))
	if tokens >= 1000 {
		sum += 2
	}
	if tokens >= 4000 {
		sum += 2
	}

	if containsAny(folded, stepMarkerWords) || stepMarkerRegex.MatchString(folded) {
		sum += 3
	}

	for _, keywords := range domainKeywords {
		if containsAny(folded, keywords) {
			sum += 2
			break
		}
	}

	if sum > 10 {
		sum = 10
	}
	return sum
}

// Realtime reports whether the message carries a realtime marker.
func Realtime(message string) bool {
	return containsAny(strings.ToLower(message), realtimeWords)
}

// PrivacyFlag reports whether the message or config requests privacy routing.
func PrivacyFlag(message string, cfg models.RouterConfig) bool {
	if cfg.PrivacyMode {
		return true
	}
	return containsAny(strings.ToLower(message), privacyWords)
}

// DerivePriority maps a scored task to its priority tier.
func DerivePriority(complexity int, realtime bool) models.Priority {
	switch {
	case complexity >= 8 || realtime:
		return models.PriorityUrgent
	case complexity >= 4:
		return models.PriorityNormal
	default:
		return models.PriorityBackground
	}
}

// DecideRoute applies the route-decision rules in order, first match wins.
func DecideRoute(privacy, realtime bool, complexity int, cfg models.RouterConfig, status models.ExecutorStatus) models.Route {
	if privacy {
		return models.RouteLocal
	}
	if realtime && status.LocalModelLoaded {
		return models.RouteLocal
	}
	switch cfg.Mode {
	case "local":
		if status.LocalModelLoaded {
			return models.RouteLocal
		}
		return models.RouteCloud
	case "cloud":
		if status.CloudAvailable {
			return models.RouteCloud
		}
		return models.RouteLocal
	default: // "auto"
		if complexity >= cfg.Threshold {
			if status.CloudAvailable {
				return models.RouteCloud
			}
			return models.RouteLocal
		}
		if status.LocalModelLoaded {
			return models.RouteLocal
		}
		return models.RouteCloud
	}
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

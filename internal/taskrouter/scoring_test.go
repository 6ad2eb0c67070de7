package taskrouter

import (
	"strings"
	"testing"

	"github.com/agentrt/runtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Bounds(t *testing.T) {
	cfg := models.DefaultRouterConfig()
	require.Equal(t, 0, Score("Hi", cfg))

	longMultiStep := strings.Repeat("word ", 1100) + "first do this then do that finally stop"
	score := Score(longMultiStep, cfg)
	assert.GreaterOrEqual(t, score, 0)
	assert.LessOrEqual(t, score, 10)
}

func TestScore_Deterministic(t *testing.T) {
	cfg := models.DefaultRouterConfig()
	msg := "first write some code then test it, finally ship it"
	a := Score(msg, cfg)
	b := Score(msg, cfg)
	assert.Equal(t, a, b)
}

func TestScore_LongMultiStepReachesSeven(t *testing.T) {
	cfg := models.DefaultRouterConfig()
	text := strings.Repeat("x", 4100*4) + " first step is this, then next step, finally we are done"
	got := Score(text, cfg)
	assert.Equal(t, 7, got)
}

func TestDerivePriority(t *testing.T) {
	assert.Equal(t, models.PriorityUrgent, DerivePriority(8, false))
	assert.Equal(t, models.PriorityUrgent, DerivePriority(0, true))
	assert.Equal(t, models.PriorityNormal, DerivePriority(4, false))
	assert.Equal(t, models.PriorityBackground, DerivePriority(3, false))
}

func TestDecideRoute_PrivacyAlwaysLocal(t *testing.T) {
	cfg := models.RouterConfig{Mode: "cloud", Threshold: 6}
	status := models.ExecutorStatus{LocalModelLoaded: true, CloudAvailable: true}
	route := DecideRoute(true, false, 0, cfg, status)
	assert.Equal(t, models.RouteLocal, route)
}

func TestDecideRoute_RealtimeWithLocal(t *testing.T) {
	cfg := models.RouterConfig{Mode: "cloud", Threshold: 6}
	status := models.ExecutorStatus{LocalModelLoaded: true, CloudAvailable: true}
	route := DecideRoute(false, true, 0, cfg, status)
	assert.Equal(t, models.RouteLocal, route)
}

func TestDecideRoute_AutoThreshold(t *testing.T) {
	cfg := models.RouterConfig{Mode: "auto", Threshold: 6}
	status := models.ExecutorStatus{LocalModelLoaded: true, CloudAvailable: true}
	assert.Equal(t, models.RouteCloud, DecideRoute(false, false, 7, cfg, status))
	assert.Equal(t, models.RouteLocal, DecideRoute(false, false, 2, cfg, status))
}

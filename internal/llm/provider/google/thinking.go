package google

import (
	"strings"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
)

// ThinkingLevel is an alias for the canonical abstract reasoning-effort
// dial, kept local so this file reads the same as the original thinking.c.
type ThinkingLevel = llm.ThinkingLevel

const (
	ThinkingMin  = llm.ThinkingMin
	ThinkingLow  = llm.ThinkingLow
	ThinkingMed  = llm.ThinkingMed
	ThinkingHigh = llm.ThinkingHigh
)

// ModelSeries classifies a Gemini model name by substring (§4.12, §9 Open
// Questions).
type ModelSeries int

const (
	SeriesOther ModelSeries = iota
	SeriesGemini25
	SeriesGemini3
)

// Series classifies model by the substrings "gemini-3" / "gemini-2.5";
// everything else (1.5, etc.) is SeriesOther.
func Series(model string) ModelSeries {
	switch {
	case strings.Contains(model, "gemini-3"):
		return SeriesGemini3
	case strings.Contains(model, "gemini-2.5"):
		return SeriesGemini25
	default:
		return SeriesOther
	}
}

// SupportsThinking reports whether model accepts a thinking configuration at
// all (Gemini 2.5 and 3.x only).
func SupportsThinking(model string) bool {
	s := Series(model)
	return s == SeriesGemini25 || s == SeriesGemini3
}

type budgetRange struct {
	min, max int
}

// budgetTable holds the known Gemini 2.5 models' thinking-budget limits.
// Exact-match only; unlisted 2.5 models are treated as unknown (§9: "Google
// thinking_budget on unknown 2.5 models -> InvalidArg, not -1").
var budgetTable = map[string]budgetRange{
	"gemini-2.5-pro":        {128, 32768},
	"gemini-2.5-flash-lite": {512, 24576},
	"gemini-2.5-flash":      {0, 24576},
}

// CanDisableThinking reports whether a Gemini 2.5 model's minimum budget is
// zero (meaning ThinkingMin can turn thinking off entirely).
func CanDisableThinking(model string) bool {
	if Series(model) != SeriesGemini25 {
		return false
	}
	r, ok := budgetTable[model]
	return ok && r.min == 0
}

// ValidateThinking implements ik_google_validate_thinking: MIN is always
// valid except on a Gemini 2.5 model whose minimum budget is greater than
// zero, since that model can never disable thinking entirely; any other
// level requires the model to support thinking at all.
func ValidateThinking(model string, level ThinkingLevel) *ikerr.Error {
	if level == ThinkingMin {
		if Series(model) == SeriesGemini25 && !CanDisableThinking(model) {
			return ikerr.New(ikerr.InvalidArg,
				"model %q cannot disable thinking (minimum budget > 0); use Low, Med, or High", model)
		}
		return nil
	}
	if !SupportsThinking(model) {
		return ikerr.New(ikerr.InvalidArg,
			"model %q does not support Google thinking (only Gemini 2.5 and 3.x models support thinking)", model)
	}
	// An unrecognized Gemini 2.5 model has no budget-table entry, so
	// ThinkingBudget would otherwise fail silently later (§9 "unknown 2.5
	// models -> InvalidArg, not -1").
	if Series(model) == SeriesGemini25 {
		if _, ok := ThinkingBudget(model, level); !ok {
			return ikerr.New(ikerr.InvalidArg,
				"model %q is not a recognized Gemini 2.5 model for thinking budgets", model)
		}
	}
	return nil
}

// floorPowerOf2 rounds n down to the nearest power of 2 (n<=0 -> 0).
func floorPowerOf2(n int) int {
	if n <= 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return (n >> 1) + 1
}

// ThinkingBudget implements ik_google_thinking_budget (§4.12, §8 example 3):
// min->min_budget, low/med interpolate via floor_power_of_2, high->max_budget.
// ok is false for non-2.5 models or models absent from the exact-match table.
func ThinkingBudget(model string, level ThinkingLevel) (budget int, ok bool) {
	if Series(model) != SeriesGemini25 {
		return 0, false
	}
	r, found := budgetTable[model]
	if !found {
		return 0, false
	}

	budgetRange := r.max - r.min
	switch level {
	case ThinkingMin:
		return r.min, true
	case ThinkingLow:
		return floorPowerOf2(r.min + budgetRange/3), true
	case ThinkingMed:
		return floorPowerOf2(r.min + 2*budgetRange/3), true
	case ThinkingHigh:
		return r.max, true
	default:
		return 0, false
	}
}

// gemini3LevelMap is the per-model thinking-level string mapping for
// Gemini 3.x, which takes named levels instead of a numeric budget.
var gemini3LevelMap = map[string][4]string{
	"gemini-3-flash-preview":  {"minimal", "low", "medium", "high"},
	"gemini-3-pro-preview":    {"low", "low", "high", "high"},
	"gemini-3.1-pro-preview":  {"low", "low", "medium", "high"},
}

// ThinkingLevelString implements ik_google_thinking_level_str: looks up the
// model's level mapping, falling back to low (Min/Low) or high (Med/High)
// for unrecognized Gemini 3 models.
func ThinkingLevelString(model string, level ThinkingLevel) string {
	entry, ok := gemini3LevelMap[model]
	if !ok {
		switch level {
		case ThinkingMin, ThinkingLow:
			return "low"
		default:
			return "high"
		}
	}
	switch level {
	case ThinkingMin:
		return entry[0]
	case ThinkingLow:
		return entry[1]
	case ThinkingMed:
		return entry[2]
	default:
		return entry[3]
	}
}

package ai

import (
	"encoding/json"
	"os"
)

// Model metadata and pricing used for cost logging and prompt budgeting.
// Prices are illustrative; override them with a JSON catalog when needed.

type ModelInfo struct {
	Name          string
	Backend       string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	"gpt-4o": {
		Name:          "gpt-4o",
		Backend:       BackendOpenAI,
		ContextTokens: 128000,
		InputPerK:     0.0025,
		OutputPerK:    0.01,
	},
	"gpt-4o-mini": {
		Name:          "gpt-4o-mini",
		Backend:       BackendOpenAI,
		ContextTokens: 128000,
		InputPerK:     0.00015,
		OutputPerK:    0.0006,
	},
	"llama-3.1-8b-instant": {
		Name:          "llama-3.1-8b-instant",
		Backend:       BackendGroq,
		ContextTokens: 131072,
		InputPerK:     0.00005,
		OutputPerK:    0.00008,
	},
	"llama-3.3-70b-versatile": {
		Name:          "llama-3.3-70b-versatile",
		Backend:       BackendGroq,
		ContextTokens: 131072,
		InputPerK:     0.00059,
		OutputPerK:    0.00079,
	},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// ---- Sync/override helpers ----

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example JSON entry:
// { "gpt-4o": {"Name":"gpt-4o","Backend":"openai","ContextTokens":128000,"InputPerK":0.0025,"OutputPerK":0.01} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var m map[string]ModelInfo
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	models = m
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}

package ports

import (
	"log/slog"

	"github.com/deepthink-ai/deepthink/pkg/config"
)

// Capabilities aggregates every port behind one accessor. Nil fields mean
// the capability is not configured; callers treat that as unavailable.
type Capabilities struct {
	Search        Search
	Knowledge     Knowledge
	Hotspot       Hotspot
	Multimodal    Multimodal
	Prediction    Prediction
	Decomposition VideoDecomposition
	Samples       SampleLibrary
	Rules         PlatformRules
	Methodology   Methodology
	Cases         CaseTemplate
	DataLoop      DataLoop
}

// NewCapabilities wires adapters per configuration. Search and knowledge
// select mock vs. HTTP; an HTTP adapter that cannot be constructed (missing
// key) degrades to mock with a warning. The analytics ports always get
// their in-memory adapter.
func NewCapabilities(cfg config.PortsConfig) *Capabilities {
	caps := &Capabilities{
		Search:        NewMockSearch(),
		Knowledge:     NewMockKnowledge(),
		Hotspot:       NewMockHotspot(),
		Multimodal:    NewMockMultimodal(),
		Prediction:    NewMockPrediction(),
		Decomposition: NewMockDecomposition(),
		Samples:       NewMemSampleLibrary(),
		Rules:         NewStaticPlatformRules(),
		Methodology:   NewMemMethodology(),
		Cases:         NewMemCaseTemplate(),
		DataLoop:      NewMemDataLoop(),
	}

	if cfg.Search.Adapter == "http" {
		s, err := NewHTTPSearch(cfg.Search.BaseURL, cfg.Search.APIKeyEnv)
		if err != nil {
			slog.Warn("Search HTTP adapter unavailable, falling back to mock", "error", err)
		} else {
			caps.Search = s
		}
	}
	if cfg.Knowledge.Adapter == "http" {
		k, err := NewHTTPKnowledge(cfg.Knowledge.BaseURL, cfg.Knowledge.APIKeyEnv)
		if err != nil {
			slog.Warn("Knowledge HTTP adapter unavailable, falling back to mock", "error", err)
		} else {
			caps.Knowledge = k
		}
	}
	return caps
}

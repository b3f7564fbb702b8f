package orchestrator

import (
	"github.com/LexHelios/Lexworking-sub001/internal/registry"
)

// VisionConfidence is reported for answers produced by the vision path,
// which bypasses weighted scoring.
const VisionConfidence = 0.9

// VisionRouter picks an image-capable model for an attachment.
type VisionRouter struct {
	models []registry.VisionModel
}

// NewVisionRouter creates a router over models in priority order.
func NewVisionRouter(models []registry.VisionModel) *VisionRouter {
	return &VisionRouter{models: append([]registry.VisionModel(nil), models...)}
}

// Select returns the first vision model, in registry order, that is present
// in available and declares support for contentType.
func (v *VisionRouter) Select(contentType string, available []string) (string, bool) {
	present := make(map[string]bool, len(available))
	for _, name := range available {
		present[name] = true
	}
	for _, m := range v.models {
		if present[m.Name] && m.Accepts(contentType) {
			return m.Name, true
		}
	}
	return "", false
}

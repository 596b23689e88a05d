package plugin

import "github.com/deepthink-ai/deepthink/pkg/models"

// MergeResultInto applies the plugin result convention to shared state: a
// result shaped {"analysis": {k: v}} is merged field-wise into the state's
// analysis; any other shape is stored whole under the plugin's name. Keys
// the result does not set are preserved.
func MergeResultInto(state *models.MetaState, pluginName string, result map[string]any) {
	if len(result) == 0 {
		return
	}
	if nested, ok := result["analysis"].(map[string]any); ok {
		state.MergeAnalysis(nested)
		return
	}
	state.MergeAnalysis(map[string]any{pluginName: result})
}

package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
	"github.com/deepthink-ai/deepthink/pkg/ports"
)

const kbTopK = 3

// kbPlugin retrieves knowledge-base passages for the analysis fan-out.
// Retrievals are cached per normalized query.
type kbPlugin struct {
	source ports.Knowledge
	cache  *cache.SmartCache
}

func (k *kbPlugin) getOutput(ctx context.Context, execCtx map[string]any) (map[string]any, error) {
	query, _ := execCtx["query"].(string)
	if strings.TrimSpace(query) == "" {
		return map[string]any{}, nil
	}

	key := cache.Fingerprint(cache.PrefixPluginKB, map[string]any{"query": query})
	raw, _, err := k.cache.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		passages, rerr := k.source.Retrieve(ctx, query, kbTopK)
		if rerr != nil {
			return nil, fmt.Errorf("knowledge retrieval failed: %w", rerr)
		}
		return k.digest(passages), nil
	}, cache.TTLRetrieval)
	if err != nil {
		return nil, err
	}

	var digest string
	if err := json.Unmarshal(raw, &digest); err != nil {
		return nil, fmt.Errorf("cached kb digest undecodable: %w", err)
	}
	if digest == "" {
		return map[string]any{}, nil
	}
	return map[string]any{"analysis": map[string]any{"kb": digest}}, nil
}

func (k *kbPlugin) digest(passages []string) string {
	if len(passages) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("知识库要点：\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(p))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func newKBBuilder(deps Deps) plugin.RegisterFunc {
	return func(center *plugin.Center, _ *config.Config, entry config.PluginManifestEntry) error {
		p := &kbPlugin{source: deps.Ports.Knowledge, cache: deps.Cache}
		return center.Register(entry.Name, plugin.KindRealtime, plugin.Hooks{
			GetOutput: p.getOutput,
		})
	}
}

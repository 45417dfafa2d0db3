package serializer

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/coscene-io/topicrecorder/types"
)

// SchemaMatcher resolves schema-info for a topic by glob pattern, supporting
// "**" segment wildcards per §4.2. Patterns are compiled once at
// construction so the hot serialization path never recompiles a glob.
type SchemaMatcher struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	g      glob.Glob
	schema SchemaInfo
}

// NewSchemaMatcher compiles the configured topic-pattern -> schema-info
// table. Returns an error if any pattern fails to compile.
func NewSchemaMatcher(patterns []types.SchemaPattern) (*SchemaMatcher, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p.TopicGlob, '/')
		if err != nil {
			return nil, fmt.Errorf("compile schema pattern %q: %w", p.TopicGlob, err)
		}
		compiled = append(compiled, compiledPattern{
			g: g,
			schema: SchemaInfo{
				Format:     p.Format,
				SchemaName: p.SchemaName,
				SchemaHash: p.SchemaHash,
			},
		})
	}
	return &SchemaMatcher{patterns: compiled}, nil
}

// Match returns the schema-info for topic, and true, if any configured
// pattern matches. First match wins.
func (m *SchemaMatcher) Match(topic string) (SchemaInfo, bool) {
	if m == nil {
		return SchemaInfo{}, false
	}
	for _, p := range m.patterns {
		if p.g.Match(topic) {
			return p.schema, true
		}
	}
	return SchemaInfo{}, false
}

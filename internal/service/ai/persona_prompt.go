package ai

import (
	"sort"
	"strings"

	"github.com/sparkforge/spark-os/backend/internal/model/persona"
)

// BuildSystemPrompt renders the instruction sent ahead of the history. The
// persona's directive always leads; constraints, protocol scripts and
// specialties follow as reference material for the model.
func BuildSystemPrompt(p persona.Persona) string {
	var builder strings.Builder
	builder.WriteString(strings.TrimSpace(p.Directive))

	writeList(&builder, "Constraints:", p.Constraints)

	if len(p.Protocols) > 0 {
		keys := make([]string, 0, len(p.Protocols))
		for k := range p.Protocols {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		scripts := make([]string, 0, len(keys))
		for _, k := range keys {
			scripts = append(scripts, strings.ReplaceAll(k, "_", " ")+": "+p.Protocols[k])
		}
		writeList(&builder, "Protocol scripts to use when warranted:", scripts)
	}

	writeList(&builder, "Specialties:", p.Specialties)

	builder.WriteString("\n\nEnd every reply with: ")
	builder.WriteString(p.Anchor)
	return builder.String()
}

func writeList(builder *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	builder.WriteString("\n\n")
	builder.WriteString(title)
	for _, item := range items {
		builder.WriteString("\n- ")
		builder.WriteString(item)
	}
}

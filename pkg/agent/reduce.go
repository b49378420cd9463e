package agent

import "github.com/rhuss/agentserver/pkg/api"

// ReduceStream folds the normalized chunks of a stream into a single
// response mapping: the items of all response.output_item.done events, in
// order, plus the last custom_outputs seen.
func ReduceStream(chunks []map[string]any) map[string]any {
	output := make([]any, 0, len(chunks))
	var custom any

	for _, c := range chunks {
		if c["type"] == api.EventOutputItemDone {
			if item, ok := c["item"]; ok && item != nil {
				output = append(output, item)
			}
		}
		if co, ok := c["custom_outputs"]; ok && co != nil {
			custom = co
		}
	}

	out := map[string]any{"output": output}
	if custom != nil {
		out["custom_outputs"] = custom
	}
	return out
}

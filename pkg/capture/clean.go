package capture

// volatileFields are the platform workflow fields that change on every save
// or are derived per-instance; they are stripped before export so the file
// representation stays diff-stable.
var volatileFields = []string{
	"createdAt", "updatedAt", "versionId", "statistics", "staticData",
	"triggerCount", "versionCounter", "activeVersionId", "activeVersion",
	"shared", "homeProject", "sharedWithProjects", "parentFolder",
}

// CleanWorkflow returns a copy of the workflow document with volatile
// fields, the platform row id, and the per-instance meta.instanceId
// removed. An emptied meta object is dropped entirely.
func CleanWorkflow(workflow map[string]any) map[string]any {
	cleaned := make(map[string]any, len(workflow))
	for k, v := range workflow {
		cleaned[k] = v
	}
	for _, field := range volatileFields {
		delete(cleaned, field)
	}
	delete(cleaned, "id")

	if meta, ok := cleaned["meta"].(map[string]any); ok {
		scrubbed := make(map[string]any, len(meta))
		for k, v := range meta {
			if k == "instanceId" {
				continue
			}
			scrubbed[k] = v
		}
		if len(scrubbed) == 0 {
			delete(cleaned, "meta")
		} else {
			cleaned["meta"] = scrubbed
		}
	}
	return cleaned
}

package executor

// deriveInputScope implements §4.6's "Input scope derivation": if the caller
// supplied an explicit nested "input" key in context, use it verbatim;
// otherwise derive {class, assignment, student} from the flat
// classId/assignmentId/studentId keys so Blueprints can reference $input.*
// consistently either way.
func deriveInputScope(context map[string]any) map[string]any {
	if explicit, ok := context["input"].(map[string]any); ok {
		return explicit
	}
	input := make(map[string]any)
	if v, ok := context["classId"]; ok {
		input["class"] = v
	}
	if v, ok := context["assignmentId"]; ok {
		input["assignment"] = v
	}
	if v, ok := context["studentId"]; ok {
		input["student"] = v
	}
	return input
}

package executor

import "github.com/insight-edu/pageflow/internal/blueprint"

// projectDeterministic builds a block's Props for a non-AI slot straight
// from its resolved dataBinding value, per §4.6 Phase C's per-componentType
// projection rules. Unrecognized shapes fall back to passing the resolved
// value through under "value" (a chart passes it through as its series) so
// a misshapen upstream payload degrades to something the renderer can
// still display rather than disappearing.
func projectDeterministic(componentType blueprint.ComponentType, resolved any, extraProps map[string]any) map[string]any {
	props := map[string]any{}
	for k, v := range extraProps {
		props[k] = v
	}

	// kpi_grid and table only recognize a map or a list of maps.
	_, isMap := resolved.(map[string]any)
	_, isList := resolved.([]any)
	unrecognized := resolved != nil && !isMap && !isList

	switch componentType {
	case blueprint.ComponentKPIGrid:
		props["items"] = projectKPIItems(resolved)
		if unrecognized {
			props["value"] = resolved
		}
	case blueprint.ComponentChart:
		xAxis, series := projectChart(resolved)
		props["xAxis"] = xAxis
		props["series"] = series
	case blueprint.ComponentTable:
		props["rows"] = projectTableRows(resolved)
		if unrecognized {
			props["value"] = resolved
		}
	case blueprint.ComponentMarkdown:
		if s, ok := resolved.(string); ok {
			props["content"] = s
		} else if resolved != nil {
			props["value"] = resolved
		}
	default:
		if resolved != nil {
			props["value"] = resolved
		}
	}
	return props
}

// kpiItem is the normalized shape a kpi_grid projects into.
type kpiItem struct {
	Label   string `json:"label"`
	Value   any    `json:"value"`
	Status  string `json:"status,omitempty"`
	Subtext string `json:"subtext,omitempty"`
}

func projectKPIItems(resolved any) []kpiItem {
	entries := asSliceOfMaps(resolved)
	if entries == nil {
		if m, ok := resolved.(map[string]any); ok {
			entries = []map[string]any{m}
		}
	}
	items := make([]kpiItem, 0, len(entries))
	for _, e := range entries {
		item := kpiItem{Status: "neutral"}
		if v, ok := e["label"].(string); ok {
			item.Label = v
		}
		if v, ok := e["value"]; ok {
			item.Value = v
		}
		if v, ok := e["status"].(string); ok {
			item.Status = v
		}
		if v, ok := e["subtext"].(string); ok {
			item.Subtext = v
		}
		items = append(items, item)
	}
	return items
}

func projectChart(resolved any) (xAxis []any, series any) {
	m, ok := resolved.(map[string]any)
	if !ok {
		return nil, resolved
	}
	if x, ok := m["categories"]; ok {
		xAxis = asSlice(x)
	} else if x, ok := m["xAxis"]; ok {
		xAxis = asSlice(x)
	}
	if s, ok := m["series"]; ok {
		series = s
	} else if s, ok := m["values"]; ok {
		series = s
	} else {
		series = m
	}
	return xAxis, series
}

func projectTableRows(resolved any) []map[string]any {
	if rows := asSliceOfMaps(resolved); rows != nil {
		return rows
	}
	if m, ok := resolved.(map[string]any); ok {
		return []map[string]any{m}
	}
	return nil
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func asSliceOfMaps(v any) []map[string]any {
	s, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(s))
	for _, item := range s {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

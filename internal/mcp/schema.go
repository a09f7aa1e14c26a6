package mcp

import "github.com/isaacphi/mcpchat/internal/domain"

func parseSchema(schema map[string]interface{}) domain.Parameters {
	params := domain.Parameters{
		Type:       "object",
		Properties: make(map[string]domain.Property),
	}
	if schema == nil {
		return params
	}

	if t, ok := schema["type"].(string); ok {
		params.Type = t
	}
	params.Required = stringList(schema["required"])

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		for name, p := range props {
			if propMap, ok := p.(map[string]interface{}); ok {
				params.Properties[name] = parseProperty(propMap)
			}
		}
	}

	return params
}

func parseProperty(propMap map[string]interface{}) domain.Property {
	property := domain.Property{}

	if t, ok := propMap["type"].(string); ok {
		property.Type = t
	}
	if desc, ok := propMap["description"].(string); ok {
		property.Description = desc
	}
	property.Enum = stringList(propMap["enum"])
	if def, ok := propMap["default"]; ok {
		property.Default = def
	}

	// Array items
	if items, ok := propMap["items"].(map[string]interface{}); ok {
		itemsProp := parseProperty(items)
		property.Items = &itemsProp
	}

	// Nested objects
	if props, ok := propMap["properties"].(map[string]interface{}); ok {
		property.Properties = make(map[string]domain.Property)
		for name, p := range props {
			if pMap, ok := p.(map[string]interface{}); ok {
				property.Properties[name] = parseProperty(pMap)
			}
		}
	}
	property.Required = stringList(propMap["required"])

	return property
}

func stringList(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// FilterArguments drops nil values and a zero "offset", which several
// servers reject.
func FilterArguments(args map[string]interface{}) map[string]interface{} {
	filtered := make(map[string]interface{}, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		if k == "offset" && isZero(v) {
			continue
		}
		filtered[k] = v
	}
	return filtered
}

func isZero(v interface{}) bool {
	switch n := v.(type) {
	case int:
		return n == 0
	case int64:
		return n == 0
	case float64:
		return n == 0
	case float32:
		return n == 0
	default:
		return false
	}
}

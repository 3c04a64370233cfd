package planner

// blueprintSchema constrains the LLM's Blueprint output. id, createdAt, and
// sourcePrompt are deliberately absent from "required": the Planner
// auto-fills the first two and unconditionally overwrites the third
// (§4.5's invariant enforcement), so the LLM's values for them, if present,
// are ignored rather than validated.
const blueprintSchema = `{
  "type": "object",
  "required": ["name", "description", "version", "capabilityLevel", "dataContract", "computeGraph", "uiComposition"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "version": {"type": "string"},
    "capabilityLevel": {"type": "integer", "minimum": 1, "maximum": 3},
    "dataContract": {
      "type": "object",
      "required": ["inputs", "bindings"],
      "properties": {
        "inputs": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "type", "label", "required"],
            "properties": {
              "id": {"type": "string"},
              "type": {"type": "string", "enum": ["class", "assignment", "student", "dateRange"]},
              "label": {"type": "string"},
              "required": {"type": "boolean"},
              "dependsOn": {"type": "string"}
            }
          }
        },
        "bindings": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "sourceType", "paramMapping", "required", "dependsOn"],
            "properties": {
              "id": {"type": "string"},
              "sourceType": {"type": "string", "enum": ["tool", "api", "static"]},
              "toolName": {"type": "string"},
              "paramMapping": {"type": "object"},
              "required": {"type": "boolean"},
              "dependsOn": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    },
    "computeGraph": {
      "type": "object",
      "required": ["nodes"],
      "properties": {
        "nodes": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "type", "dependsOn", "outputKey"],
            "properties": {
              "id": {"type": "string"},
              "type": {"type": "string", "enum": ["tool", "ai"]},
              "toolName": {"type": "string"},
              "toolArgs": {"type": "object"},
              "promptTemplate": {"type": "string"},
              "dependsOn": {"type": "array", "items": {"type": "string"}},
              "outputKey": {"type": "string"}
            }
          }
        }
      }
    },
    "uiComposition": {
      "type": "object",
      "required": ["layout", "tabs"],
      "properties": {
        "layout": {"type": "string", "enum": ["tabs", "single_page"]},
        "tabs": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "label", "slots"],
            "properties": {
              "id": {"type": "string"},
              "label": {"type": "string"},
              "slots": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["id", "componentType", "aiContentSlot"],
                  "properties": {
                    "id": {"type": "string"},
                    "componentType": {
                      "type": "string",
                      "enum": ["kpi_grid", "chart", "table", "markdown", "suggestion_list", "question_generator"]
                    },
                    "dataBinding": {"type": ["string", "null"]},
                    "props": {"type": "object"},
                    "aiContentSlot": {"type": "boolean"}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

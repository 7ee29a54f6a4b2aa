package llm

import "encoding/json"

// topicsSchema is the strict JSON schema enforced on the primary structured
// tier. Field names line up with models.TopicsPayload.
var topicsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "topics": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "topic": {"type": "string"},
          "topic_description": {"type": "string"},
          "message_ids": {
            "type": "array",
            "items": {"type": "integer"}
          },
          "message_count": {"type": "integer"},
          "participants": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "username": {"type": "string"},
                "first_name": {"type": "string"},
                "second_name": {"type": "string"},
                "message_count": {"type": "integer"}
              },
              "required": ["username", "first_name", "second_name", "message_count"],
              "additionalProperties": false
            }
          }
        },
        "required": ["topic", "topic_description", "message_ids", "message_count", "participants"],
        "additionalProperties": false
      }
    }
  },
  "required": ["topics"],
  "additionalProperties": false
}`)

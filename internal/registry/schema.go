package registry

import "github.com/santhosh-tekuri/jsonschema/v5"

const schemaURL = "file:///tuya-devices.schema.json"

// Only the document shape is checked here. Device fields are checked when a
// record is selected, so one incomplete entry does not break the others.
const schemaText = `{
  "type": "array",
  "items": {"type": "object"}
}`

var schema = jsonschema.MustCompileString(schemaURL, schemaText)

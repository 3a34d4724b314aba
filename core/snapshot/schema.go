package snapshot

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["schema_version", "count", "checksum", "cells"],
  "properties": {
    "schema_version": {"type": "integer", "minimum": 1},
    "count": {"type": "integer", "minimum": 0},
    "checksum": {"type": "integer", "minimum": 0},
    "cells": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["world", "x", "z", "nationId"],
        "properties": {
          "world": {"type": "string"},
          "x": {"type": "integer", "minimum": -2147483648, "maximum": 2147483647},
          "z": {"type": "integer", "minimum": -2147483648, "maximum": 2147483647},
          "nationId": {"type": "string"}
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("territories.schema.json", documentSchema)

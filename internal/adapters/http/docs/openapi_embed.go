package docs

import _ "embed"

// OpenAPI is the embedded OpenAPI specification.
//
//go:embed openapi.yaml
var OpenAPI []byte

// Package schemas holds the JSON Schemas for request and manifest documents.
package schemas

import "embed"

// BaseURI prefixes every schema $id.
const BaseURI = "https://github.com/jonathan/pdf-signer/schemas/"

// FS contains every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

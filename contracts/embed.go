// Package contracts embeds the OpenAPI documents served and enforced by the
// API server.
package contracts

import _ "embed"

//go:embed lawfirms.yaml
var LawFirmsYAML []byte

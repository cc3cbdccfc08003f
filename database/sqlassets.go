package sqlassets

import _ "embed"

//go:embed schema/law_firms.sql
var LawFirmsSQL string

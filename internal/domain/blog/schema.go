package blog

import _ "embed"

// Schema creates the PostgreSQL tables of the blog domain.
//
//go:embed schema.sql
var Schema string

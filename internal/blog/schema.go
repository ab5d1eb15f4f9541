package blog

import _ "embed"

// Schema creates the post, tag, post_tag and comment tables.
//
//go:embed schema.sql
var Schema string

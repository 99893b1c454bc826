// Package web embeds the HTML templates and static assets of the ledger UI.
package web

import "embed"

// TemplatesFS holds the page and its partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and scripts served under /static/.
//
//go:embed static/*
var StaticFS embed.FS

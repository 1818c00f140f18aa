// Package web carries the embedded UI: page and partial templates plus the
// static assets they reference.
package web

import "embed"

// TemplatesFS holds the dashboard, fleet and vehicle templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the HTMX event listeners.
//
//go:embed static/*
var StaticFS embed.FS

// Package ui serves the embedded browser page. Assets are minified once at start-up.
package ui

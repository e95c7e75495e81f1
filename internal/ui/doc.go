// Package ui renders the plain-terminal output of the dockerstats commands:
// tables for discovered containers and sampled series, styled with Lip Gloss.
//
// Colors are ANSI codes rather than hex so output degrades cleanly on
// limited terminals and when piped.
package ui

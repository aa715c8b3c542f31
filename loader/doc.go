// Package loader turns raw provider documentation into inputs for the
// extraction pipeline.
//
// ParseResource reads a Terraform provider Markdown page syntactically into a
// core.ResourceRecord, with no model call. BestPracticeRule buckets the bullets
// of a best-practice chunk by heading. LoadText and Splitter handle free-form
// documents (Markdown, text and HTML), splitting them into chunks with stable
// ids.
package loader

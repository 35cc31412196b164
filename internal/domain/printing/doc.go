// Package printing contains the page model used to render invoices.
// A Document is a page setup plus a flat list of absolutely positioned
// Blocks; renderers draw blocks without knowing what an invoice is.
package printing

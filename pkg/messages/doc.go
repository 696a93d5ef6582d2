// Package messages holds the user-facing strings the session subsystem hands
// to the UI reporter. Translations are embedded YAML; the language is chosen
// with golang.org/x/text/language matching, so "ar-SY" resolves to "ar" and an
// unsupported tag falls back to Arabic, the client's primary language.
package messages

package utils

import "github.com/microcosm-cc/bluemonday"

// Post and comment bodies accept user-generated HTML, so everything written
// through the API passes through the UGC policy first.
var sanitizer = bluemonday.UGCPolicy()

// Sanitize strips markup that the UGC policy does not allow.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

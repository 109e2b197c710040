package main

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeHelpListsReadableFormats(t *testing.T) {
	assert.Contains(t, serveCmd.Long, "XLSX")
	assert.Contains(t, serveCmd.Long, "CSV")
	// Legacy .xls workbooks cannot be opened by the XLSX reader.
	assert.NotRegexp(t, regexp.MustCompile(`\bXLS\b`), serveCmd.Long)
}

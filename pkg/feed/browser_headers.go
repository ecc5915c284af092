package feed

import (
	"math/rand"
	"net/http"
)

var acceptLanguages = []string{
	"en-IN,en;q=0.9",
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-IN,en;q=0.9,hi;q=0.8",
}

// addBrowserHeaders makes converter requests look like the ones a browser page sends
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // header variation only
	req.Header.Set("Connection", "keep-alive")
}

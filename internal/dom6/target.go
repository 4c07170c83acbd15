package dom6

import (
	"fmt"
	"strings"
)

const DefaultBaseURL = "http://www.illwinter.com/dom6"

// ResolveTarget turns user input into a status page url. Input that already
// looks like a url is used as is, anything else is treated as a game name
// under baseURL.
func ResolveTarget(input, baseURL string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http") {
		return input
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return fmt.Sprintf("%s/%s.html", strings.TrimRight(baseURL, "/"), input)
}

package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner unless quiet output was requested
func PrintBanner(version string, quiet bool) {
	if quiet {
		return
	}
	banner.Print("TabAnchor", version)
}

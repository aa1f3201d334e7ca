package cmd

import (
	"fmt"

	"github.com/kiosk404/mosaic/pkg/version"
)

const bannerText = `
  __  __                 _
 |  \/  | ___  ___  __ _(_) ___
 | |\/| |/ _ \/ __|/ _' | |/ __|
 | |  | | (_) \__ \ (_| | | (__
 |_|  |_|\___/|___/\__,_|_|\___|

        Mosaic Plugin Host
`

// Banner returns the CLI banner string.
func Banner() string {
	return fmt.Sprintf("%s\n  Version: %s\n", bannerText, version.Get().String())
}

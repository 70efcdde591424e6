package logo

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// Display prints the Multisigner banner.
func Display() {
	s, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Multi", pterm.FgCyan.ToStyle()),
		putils.LettersFromStringWithStyle("signer", pterm.FgLightMagenta.ToStyle())).Srender()
	pterm.DefaultCenter.Println(s)
	pterm.DefaultCenter.WithCenterEachLineSeparately().
		Println("Wallets owned together,\nspent only when enough owners agree.")
}

package infra

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the settlement setup.
func PrintBanner(cfg *Config) {
	printBanner(os.Stdout, cfg)
}

func printBanner(w io.Writer, cfg *Config) {
	env := strings.ToUpper(cfg.App.Env)
	color := ColorCyan
	if env == "PROD" {
		color = ColorGreen
	}

	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%s#   %-53s #%s\n", color, fmt.Sprintf(format, args...), ColorReset)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s###########################################################%s\n", color, ColorReset)
	line("")
	line("🔁 Shift Processor %s", cfg.App.Version)
	line("")
	line("ENV:       %s", env)
	line("CURRENCY:  %s (limit %s USD)", cfg.Shop.Currency, cfg.Shop.FiatShiftLimitUSD.String())
	line("REFERENCE: %s", cfg.Shop.USDReferenceCoin)

	labels := []string{"MAIN:     ", "SECONDARY:"}
	for i, wlt := range cfg.Wallets {
		line("%s %s-%s %s", labels[i], wlt.Coin, wlt.Network, MaskAddress(wlt.Address))
	}
	line("")

	if len(cfg.Wallets) == 0 {
		fmt.Fprintf(w, "%s#   ⚠️  NO SETTLE WALLET: payment creation is disabled       #%s\n", ColorYellow, ColorReset)
	}
	if cfg.SideShift.Secret == "" {
		fmt.Fprintf(w, "%s#   ⚠️  SIDESHIFT SECRET MISSING: order calls will fail      #%s\n", ColorRed, ColorReset)
	}

	fmt.Fprintf(w, "%s###########################################################%s\n", color, ColorReset)
	fmt.Fprintln(w)
}

// MaskAddress keeps the first and last 4 characters of a wallet address.
func MaskAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

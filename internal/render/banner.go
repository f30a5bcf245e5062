package render

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
)

// BannerStyle selects how the startup banner is drawn
type BannerStyle string

const (
	BannerASCII BannerStyle = "ascii"
	BannerPanel BannerStyle = "panel"
	BannerBig   BannerStyle = "big"
)

// ParseBannerStyle accepts ascii, panel or big
func ParseBannerStyle(s string) (BannerStyle, error) {
	switch style := BannerStyle(strings.ToLower(strings.TrimSpace(s))); style {
	case BannerASCII, BannerPanel, BannerBig:
		return style, nil
	case "":
		return BannerPanel, nil
	default:
		return "", errors.Errorf("unknown banner style %q (want ascii, panel or big)", s)
	}
}

const asciiBanner = `
  ____            __  __             _ _
 / ___| _   _ ___|  \/  | ___  _ __ (_) |_ ___  _ __
 \___ \| | | / __| |\/| |/ _ \| '_ \| | __/ _ \| '__|
  ___) | |_| \__ \ |  | | (_) | | | | | || (_) | |
 |____/ \__, |___/_|  |_|\___/|_| |_|_|\__\___/|_|
        |___/
`

const bigBanner = `
 ███████╗██╗   ██╗███████╗███╗   ███╗ ██████╗ ███╗   ██╗
 ██╔════╝╚██╗ ██╔╝██╔════╝████╗ ████║██╔═══██╗████╗  ██║
 ███████╗ ╚████╔╝ ███████╗██╔████╔██║██║   ██║██╔██╗ ██║
 ╚════██║  ╚██╔╝  ╚════██║██║╚██╔╝██║██║   ██║██║╚██╗██║
 ███████║   ██║   ███████║██║ ╚═╝ ██║╚██████╔╝██║ ╚████║
 ╚══════╝   ╚═╝   ╚══════╝╚═╝     ╚═╝ ╚═════╝ ╚═╝  ╚═══╝
`

// Banner prints the banner followed by the version line
func (p *TextPresenter) Banner(style BannerStyle, version string) error {
	var out string
	switch style {
	case BannerASCII:
		out = asciiBanner + fmt.Sprintf("  System Insights • v%s\n", version)
	case BannerBig:
		out = bigBanner + fmt.Sprintf("  System Insights • v%s\n  CPU • MEM • DISK • NET • PROC\n", version)
	default:
		out = panel([]string{
			"SYSMONITOR",
			fmt.Sprintf("System Insights • v%s", version),
			"",
			"CPU • MEM • DISK • NET • PROC",
		})
	}
	_, err := fmt.Fprint(p.w, out)
	return err
}

// panel centers lines inside a heavy box
func panel(lines []string) string {
	inner := 0
	for _, l := range lines {
		inner = max(inner, len([]rune(l)))
	}
	inner += 6

	var b strings.Builder
	b.WriteString("┏" + strings.Repeat("━", inner) + "┓\n")
	blank := "┃" + strings.Repeat(" ", inner) + "┃\n"
	b.WriteString(blank)
	for _, l := range lines {
		n := len([]rune(l))
		left := (inner - n) / 2
		b.WriteString("┃" + strings.Repeat(" ", left) + l + strings.Repeat(" ", inner-n-left) + "┃\n")
	}
	b.WriteString(blank)
	b.WriteString("┗" + strings.Repeat("━", inner) + "┛\n")
	return b.String()
}

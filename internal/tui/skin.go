package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Skin holds the configurable dashboard palette. Any field left empty in the
// skin file keeps its default.
type Skin struct {
	Background string `yaml:"background"`
	Foreground string `yaml:"foreground"`
	Accent     string `yaml:"accent"`
	Success    string `yaml:"success"`
	Warning    string `yaml:"warning"`
	Error      string `yaml:"error"`
	Muted      string `yaml:"muted"`
	Border     string `yaml:"border"`
}

// Palette colors, overridable via skin files.
var (
	ColorBackground = lipgloss.Color("#10142A")
	ColorForeground = lipgloss.Color("#E8E8E8")
	ColorAccent     = lipgloss.Color("#00CAC7")
	ColorSuccess    = lipgloss.Color("#49E209")
	ColorWarning    = lipgloss.Color("#FFAA00")
	ColorError      = lipgloss.Color("#FF4444")
	ColorMuted      = lipgloss.Color("244")
	ColorBorder     = lipgloss.Color("#2A3158")
)

// Shared styles, rebuilt whenever the palette changes.
var (
	sectionStyle       lipgloss.Style
	activeSectionStyle lipgloss.Style
	titleStyle         lipgloss.Style
	mutedStyle         lipgloss.Style
	statusBarStyle     lipgloss.Style
	pairingCodeStyle   lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)
	activeSectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)
	mutedStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)
	statusBarStyle = lipgloss.NewStyle().
		Background(ColorBackground).
		Foreground(ColorForeground)
	pairingCodeStyle = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ColorWarning).
		Foreground(ColorWarning).
		Bold(true).
		Padding(0, 2)
}

// InitializeSkin loads the named skin from <configDir>/skins/<name>.yaml and
// applies it to the package palette. The "default" skin is built in and never
// touches the filesystem.
func InitializeSkin(name, configDir string) error {
	if name == "" || name == "default" {
		return nil
	}

	path := filepath.Join(configDir, "skins", name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tui: read skin: %w", err)
	}

	var skin Skin
	if err := yaml.Unmarshal(data, &skin); err != nil {
		return fmt.Errorf("tui: parse skin %s: %w", path, err)
	}

	applySkin(skin)
	return nil
}

func applySkin(skin Skin) {
	set := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	set(&ColorBackground, skin.Background)
	set(&ColorForeground, skin.Foreground)
	set(&ColorAccent, skin.Accent)
	set(&ColorSuccess, skin.Success)
	set(&ColorWarning, skin.Warning)
	set(&ColorError, skin.Error)
	set(&ColorMuted, skin.Muted)
	set(&ColorBorder, skin.Border)
	rebuildStyles()
}

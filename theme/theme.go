package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type StyleType int

const (
	StylePrompt StyleType = iota
	StyleSuccess
	StyleError
	StyleWarning
	StyleInfo
	StyleTool
	StyleCommand
	StyleDebug
	StyleAgent
)

type Theme struct {
	styles map[StyleType]lipgloss.Style
}

var theme *Theme

func InitializeTheme() {
	theme = &Theme{
		styles: map[StyleType]lipgloss.Style{
			StylePrompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("13")),  // Pink
			StyleSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),   // Green
			StyleError:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),   // Red
			StyleWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),   // Yellow
			StyleInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),   // Cyan
			StyleTool:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),  // Bright blue
			StyleCommand: lipgloss.NewStyle().Foreground(lipgloss.Color("218")), // Pink
			StyleDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),   // Grey
			StyleAgent:   lipgloss.NewStyle(),                                   // Default terminal color
		},
	}
}

// StyledText renders text in the given style, falling back to plain text
// when the theme is not initialized.
func StyledText(text string, styleType StyleType) string {
	if theme == nil {
		return text
	}
	return theme.styles[styleType].Render(text)
}

// IndentText renders text with a left border, used for tool output.
func IndentText(text string) string {
	return lipgloss.NewStyle().MarginLeft(2).BorderLeft(true).BorderForeground(lipgloss.Color("13")).Render(text)
}

// Convenience functions for common styles
func PromptText(text string) string  { return StyledText(text, StylePrompt) }
func SuccessText(text string) string { return StyledText(text, StyleSuccess) }
func ErrorText(text string) string   { return StyledText(text, StyleError) }
func WarningText(text string) string { return StyledText(text, StyleWarning) }
func InfoText(text string) string    { return StyledText(text, StyleInfo) }
func ToolText(text string) string    { return StyledText(text, StyleTool) }
func CommandText(text string) string { return StyledText(text, StyleCommand) }
func DebugText(text string) string   { return StyledText(text, StyleDebug) }
func AgentText(text string) string   { return StyledText(text, StyleAgent) }

// PrintStyled prints formatted, indented text in the given style.
func PrintStyled(styleType StyleType, format string, args ...interface{}) {
	fmt.Println(StyledText(IndentText(fmt.Sprintf(format, args...)), styleType))
}

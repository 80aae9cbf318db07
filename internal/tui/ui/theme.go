package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the colors of the chat client.
type Theme struct {
	BgColor     tcell.Color
	FgColor     tcell.Color
	BorderColor tcell.Color
	TitleColor  tcell.Color

	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color
	CounterColor  tcell.Color

	CrumbActiveFg   tcell.Color
	CrumbActiveBg   tcell.Color
	CrumbInactiveFg tcell.Color
	CrumbInactiveBg tcell.Color
	MenuKeyColor    tcell.Color
	NumericKeyColor tcell.Color

	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color

	// Conversation
	SelfColor        tcell.Color
	ContactColor     tcell.Color
	TickSentColor    tcell.Color
	TickReadColor    tcell.Color
	TranslationColor tcell.Color
	BlockedColor     tcell.Color

	// Stories and calls
	StoryBarColor  tcell.Color
	CallLiveColor  tcell.Color
	CallEndedColor tcell.Color
}

// DefaultTheme returns the dark green messenger palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:     tcell.ColorBlack,
		FgColor:     tcell.ColorSilver,
		BorderColor: tcell.ColorSeaGreen,
		TitleColor:  tcell.ColorMediumSpringGreen,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorMediumSeaGreen,
		CounterColor:  tcell.ColorPaleGreen,

		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   tcell.ColorMediumSpringGreen,
		CrumbInactiveFg: tcell.ColorBlack,
		CrumbInactiveBg: tcell.ColorDarkSeaGreen,
		MenuKeyColor:    tcell.ColorMediumSeaGreen,
		NumericKeyColor: tcell.ColorGold,

		FlashInfoColor:    tcell.ColorPaleGreen,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorMediumSpringGreen,

		SelfColor:        tcell.ColorLightGreen,
		ContactColor:     tcell.ColorWhite,
		TickSentColor:    tcell.ColorGray,
		TickReadColor:    tcell.ColorDeepSkyBlue,
		TranslationColor: tcell.ColorKhaki,
		BlockedColor:     tcell.ColorIndianRed,

		StoryBarColor:  tcell.ColorWhite,
		CallLiveColor:  tcell.ColorMediumSpringGreen,
		CallEndedColor: tcell.ColorIndianRed,
	}
}

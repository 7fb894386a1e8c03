package main

type Mode int

const (
	ModeNormal Mode = iota
	ModeInput
	ModeDraw
	ModeConfirm
)

type ConfirmAction int

const (
	ConfirmDeleteItem ConfirmAction = iota
	ConfirmDeleteSelection
	ConfirmQuit
)

// A terminal cell covers cellWidth x cellHeight board pixels.
const (
	cellWidth  = 8.0
	cellHeight = 16.0
)

const (
	fontStep      = 2.0
	drawingColor  = "#1f2937"
	defaultNote   = "#fef08a"
	minBoxCells   = 3
	exportPNGExt  = ".png"
	exportTextExt = ".txt"
)

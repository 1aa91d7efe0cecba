package overlay

import (
	"image"
	"image/color"
)

// glyphs are 3x5 pixel patterns, one row per 3-bit value. Enough for marker
// badges (page numbers and short tags).
var glyphs = map[rune][5]uint8{
	'0': {0b111, 0b101, 0b101, 0b101, 0b111},
	'1': {0b010, 0b110, 0b010, 0b010, 0b111},
	'2': {0b111, 0b001, 0b111, 0b100, 0b111},
	'3': {0b111, 0b001, 0b111, 0b001, 0b111},
	'4': {0b101, 0b101, 0b111, 0b001, 0b001},
	'5': {0b111, 0b100, 0b111, 0b001, 0b111},
	'6': {0b111, 0b100, 0b111, 0b101, 0b111},
	'7': {0b111, 0b001, 0b001, 0b001, 0b001},
	'8': {0b111, 0b101, 0b111, 0b101, 0b111},
	'9': {0b111, 0b101, 0b111, 0b001, 0b111},
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'#': {0b101, 0b111, 0b101, 0b111, 0b101},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// drawText renders badge text at the given top-left position. Unknown
// characters render as blanks.
func drawText(output *image.RGBA, text string, x, y int, col color.RGBA, scale int) {
	bounds := output.Bounds()
	cx := x
	for _, ch := range text {
		if ch >= 'a' && ch <= 'z' {
			ch = ch - 'a' + 'A'
		}
		pattern := glyphs[ch]
		for row := 0; row < 5; row++ {
			for colBit := 0; colBit < 3; colBit++ {
				if pattern[row]&(1<<(2-colBit)) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						setPx(output, bounds, cx+colBit*scale+dx, y+row*scale+dy, col)
					}
				}
			}
		}
		cx += 4 * scale
	}
}

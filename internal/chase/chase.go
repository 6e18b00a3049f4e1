// Package chase is the runaway-mode playfield: Eilo's face wanders the
// screen and darts away whenever the pointer gets close.
package chase

import (
	"math"
	"strings"
)

const (
	minVisibleRows = 6
	fleeRadiusX    = 8
	fleeRadiusY    = 3
	wanderEvery    = 3 // frames per wander step
)

// Stage holds the face and pointer positions in terminal cells.
type Stage struct {
	TermWidth  int
	TermHeight int
	FaceX      int
	FaceY      int
	PointerX   int
	PointerY   int
	Frame      int

	pointerSeen bool
	dir         int
}

// Resize fits the stage to the terminal.
func (s *Stage) Resize(width, height int) {
	s.TermWidth = width
	s.TermHeight = height
	if s.dir == 0 {
		s.dir = 1
		s.FaceX = s.maxX() / 2
		s.FaceY = s.visibleRows() / 2
	}
	s.clampPositions()
}

// Pointer records the pointer position.
func (s *Stage) Pointer(x, y int) {
	s.PointerX = x
	s.PointerY = y
	s.pointerSeen = true
}

// Near reports whether the pointer is within the flee radius.
func (s *Stage) Near() bool {
	if !s.pointerSeen {
		return false
	}
	return absInt(s.PointerX-s.FaceX) <= fleeRadiusX && absInt(s.PointerY-s.FaceY) <= fleeRadiusY
}

// Caught reports whether the pointer is on the face.
func (s *Stage) Caught() bool {
	return s.pointerSeen && absInt(s.PointerX-s.FaceX) <= 1 && s.PointerY == s.FaceY
}

// Step advances one animation frame.
func (s *Stage) Step() {
	s.Frame++
	if s.TermWidth == 0 || s.TermHeight == 0 {
		return
	}

	if s.Near() {
		s.flee()
		s.clampPositions()
		return
	}

	// Wander sideways, bobbing on a sine wave, bouncing off the edges.
	if s.Frame%wanderEvery == 0 {
		s.FaceX += s.dir
		if s.FaceX <= 0 || s.FaceX >= s.maxX() {
			s.dir = -s.dir
		}

		height := float64(s.visibleRows())
		amplitude := height / 4.0
		centerY := height / 2.0
		s.FaceY = int(centerY + amplitude*math.Sin(float64(s.FaceX)*0.2))
		s.clampPositions()
	}
}

func (s *Stage) flee() {
	distX := s.FaceX - s.PointerX
	distY := s.FaceY - s.PointerY

	switch {
	case distX > 0:
		s.FaceX += 2
	case distX < 0:
		s.FaceX -= 2
	default:
		s.FaceX += 2 * s.dir
	}
	if distY > 0 {
		s.FaceY++
	} else if distY < 0 {
		s.FaceY--
	}

	// Cornered: jump to the far side.
	if s.FaceX <= 0 || s.FaceX >= s.maxX() {
		if s.PointerX < s.maxX()/2 {
			s.FaceX = s.maxX() - 1
		} else {
			s.FaceX = 1
		}
	}
}

// Render draws face at its position on an empty grid.
func (s Stage) Render(face string) string {
	if s.TermWidth == 0 || s.TermHeight == 0 {
		return face
	}

	rows := s.visibleRows()
	grid := make([][]rune, rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", s.TermWidth))
	}

	if s.FaceY >= 0 && s.FaceY < rows && s.FaceX >= 0 && s.FaceX < s.TermWidth-2 {
		for i, r := range []rune(face) {
			if s.FaceX+i < s.TermWidth {
				grid[s.FaceY][s.FaceX+i] = r
			}
		}
	}

	var result strings.Builder
	for y := range grid {
		result.WriteString(strings.TrimRight(string(grid[y]), " "))
		if y < len(grid)-1 {
			result.WriteRune('\n')
		}
	}
	return result.String()
}

func (s *Stage) clampPositions() {
	rows := s.visibleRows()
	if rows < 1 {
		return
	}
	if s.FaceX < 0 {
		s.FaceX = 0
	}
	if s.FaceX >= s.maxX() {
		s.FaceX = s.maxX()
	}
	if s.FaceY < 0 {
		s.FaceY = 0
	}
	if s.FaceY >= rows {
		s.FaceY = rows - 1
	}
}

func (s Stage) visibleRows() int {
	if s.TermHeight <= 0 {
		return 0
	}
	rows := s.TermHeight - 4 // title and help lines
	if rows < minVisibleRows {
		rows = minVisibleRows
	}
	return rows
}

func (s Stage) maxX() int {
	if s.TermWidth <= 2 {
		return 0
	}
	return s.TermWidth - 2
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

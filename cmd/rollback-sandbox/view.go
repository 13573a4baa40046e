package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/rollback/arena"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
	"github.com/lixenwraith/rollback/vmath"
)

// World extent shown on screen, in world units
const (
	viewHalfWidth = 14.0
	viewHeight    = 14.0
	hudRows       = 3
)

var (
	styleHUD    = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleStatic = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCrate  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleLocal  = tcell.StyleDefault.Foreground(tcell.ColorLime)
	styleRemote = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleFlash  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// hudPrefixes selects the registry metrics printed under the status line
var hudPrefixes = []string{"engine.", "input.", "sandbox.frame"}

type view struct {
	screen tcell.Screen
	arena  *arena.Arena
	local  input.ParticipantID
	roles  map[physics.BodyID]tcell.Style

	// Projection, recomputed on resize
	width, height  int
	scaleX, scaleY float64
	originX        int
	originY        int
}

func newView(screen tcell.Screen, a *arena.Arena, local input.ParticipantID) *view {
	v := &view{screen: screen, arena: a, local: local, roles: make(map[physics.BodyID]tcell.Style)}
	for _, id := range a.Crates {
		v.roles[id] = styleCrate
	}
	for pid, id := range a.Players {
		if pid == local {
			v.roles[id] = styleLocal
		} else {
			v.roles[id] = styleRemote
		}
	}
	v.resize()
	return v
}

// resize fits the arena keeping cells twice as tall as wide
func (v *view) resize() {
	v.width, v.height = v.screen.Size()
	sx := float64(v.width) / (2 * viewHalfWidth)
	sy := sx / 2
	if rows := float64(v.height - hudRows - 1); viewHeight*sy > rows {
		sy = max(rows/viewHeight, 0.1)
		sx = 2 * sy
	}
	v.scaleX, v.scaleY = sx, sy
	v.originX = v.width / 2
	v.originY = v.height - 1
}

func (v *view) cell(x, y float64) (int, int) {
	return v.originX + int(math.Round(x*v.scaleX)), v.originY - int(math.Round(y*v.scaleY))
}

type hud struct {
	latency     string
	paused      bool
	sound       bool
	flash       bool // a rollback happened this frame
	remoteSends int64
}

func (v *view) draw(sim *engine.Simulation, reg *status.Registry, h hud) {
	v.screen.Clear()

	for _, b := range sim.World().Bodies() {
		style, ok := v.roles[b.ID()]
		if !ok {
			style = styleStatic
		}
		v.drawBody(b, style)
	}

	line := fmt.Sprintf("tick %d  %s  latency %s  remote sent %d", sim.Tick(), sim.Mode(), h.latency, h.remoteSends)
	if h.paused {
		line += "  [paused]"
	}
	if !h.sound {
		line += "  [muted]"
	}
	v.text(0, 0, line, styleHUD)
	if h.flash {
		v.text(len(line)+2, 0, "ROLLBACK", styleFlash)
	}
	v.text(0, 1, v.metricsLine(reg), styleHUD)
	v.text(0, 2, "←/→ move  space jump  ↓ stop  p pause  m mute  q quit", styleHUD)

	v.screen.Show()
}

func (v *view) metricsLine(reg *status.Registry) string {
	var parts []string
	for _, m := range reg.Collect() {
		for _, p := range hudPrefixes {
			if strings.HasPrefix(m.Key, p) {
				parts = append(parts, m.String())
				break
			}
		}
	}
	return strings.Join(parts, " ")
}

// drawBody fills the screen box covering each shape
func (v *view) drawBody(b *physics.Body, style tcell.Style) {
	px, py := vmath.ToFloat(b.Position.X), vmath.ToFloat(b.Position.Y)
	sin, cos := math.Sincos(vmath.ToFloat(b.Angle))

	glyph := '#'
	if b.Kind() != physics.Static {
		glyph = '█'
	}

	for _, s := range b.Shapes() {
		var minX, minY, maxX, maxY float64
		switch s.Kind {
		case physics.ShapeCircle:
			r := vmath.ToFloat(s.Radius)
			ox, oy := vmath.ToFloat(s.Offset.X), vmath.ToFloat(s.Offset.Y)
			cx, cy := px+ox*cos-oy*sin, py+ox*sin+oy*cos
			minX, minY, maxX, maxY = cx-r, cy-r, cx+r, cy+r
			glyph = 'o'
		default:
			minX, minY = math.Inf(1), math.Inf(1)
			maxX, maxY = math.Inf(-1), math.Inf(-1)
			for _, vert := range s.Vertices {
				lx, ly := vmath.ToFloat(vert.X), vmath.ToFloat(vert.Y)
				wx, wy := px+lx*cos-ly*sin, py+lx*sin+ly*cos
				minX, maxX = min(minX, wx), max(maxX, wx)
				minY, maxY = min(minY, wy), max(maxY, wy)
			}
		}

		x0, y1 := v.cell(minX, minY)
		x1, y0 := v.cell(maxX, maxY)
		for y := max(y0, hudRows); y <= min(y1, v.height-1); y++ {
			for x := max(x0, 0); x < min(max(x1, x0+1), v.width); x++ {
				v.screen.SetContent(x, y, glyph, nil, style)
			}
		}
	}
}

func (v *view) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= v.width {
			return
		}
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

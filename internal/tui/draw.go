package tui

import (
	"sort"

	"github.com/gdamore/tcell/v2"

	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

// panelX is where the chat and inventory column starts.
const panelX = 30

var (
	styleDefault  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleSelf     = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleDefeated = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleSender   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleSelected = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

var glyphs = map[string]rune{
	"player":   '@',
	"stairs":   '>',
	"coin":     '$',
	"dagger":   '|',
	"shield":   '[',
	"rat":      'r',
	"skeleton": 'Z',
}

var kindStyles = map[string]tcell.Style{
	"coin":     tcell.StyleDefault.Foreground(tcell.ColorYellow),
	"rat":      tcell.StyleDefault.Foreground(tcell.ColorGreen),
	"skeleton": tcell.StyleDefault.Foreground(tcell.ColorSilver),
}

var arrows = map[world.Position]rune{
	{X: 1, Y: 0}:   '→',
	{X: 0, Y: 1}:   '↓',
	{X: -1, Y: 0}:  '←',
	{X: 0, Y: -1}:  '↑',
	{X: -1, Y: -1}: '↖',
	{X: 1, Y: -1}:  '↗',
	{X: 1, Y: 1}:   '↘',
	{X: -1, Y: 1}:  '↙',
}

// wallChars is indexed by neighbour bits: north 1, east 2, south 4, west 8.
var wallChars = [16]rune{
	'■', '║', '═', '╚', '║', '║', '╔', '╠',
	'═', '╝', '═', '╩', '╗', '╣', '╦', '╬',
}

// draw renders snap. It is a pure function of the snapshot and the key state.
func draw(screen tcell.Screen, snap world.Snapshot, keys *Keys) {
	screen.Clear()
	w, h := screen.Size()

	self, hasSelf := snap.SelfEntity()
	if hasSelf {
		drawRoom(screen, snap, self)
		drawVitality(screen, self, w, h)
	}

	switch keys.Mode() {
	case ModeInventory:
		drawInventory(screen, snap.Inventory(), keys.Cursor())
	case ModeCommand:
		drawChat(screen, snap.Chat)
		put(screen, 0, h-2, ":"+keys.Compose(), styleDefault)
	default:
		drawChat(screen, snap.Chat)
	}
	screen.Show()
}

func drawRoom(screen tcell.Screen, snap world.Snapshot, self world.Entity) {
	room, ok := self.Loc.Room()
	if !ok {
		return
	}
	var visible []world.Entity
	walls := map[world.Position]bool{}
	for _, e := range snap.Entities {
		r, ok := e.Loc.Room()
		if !ok || r != room || !e.Renderable() {
			continue
		}
		if e.Kind == "wall" {
			walls[e.Pos] = true
		}
		visible = append(visible, e)
	}
	// Items under creatures, the controlled entity on top.
	rank := func(e world.Entity) int {
		switch {
		case e.ID == self.ID:
			return 2
		case e.Living():
			return 1
		}
		return 0
	}
	sort.SliceStable(visible, func(i, j int) bool { return rank(visible[i]) < rank(visible[j]) })

	for _, e := range visible {
		if e.Pos.X < 0 || e.Pos.Y < 0 {
			continue
		}
		screen.SetContent(e.Pos.X, e.Pos.Y, glyph(e, walls), nil, style(e, self.ID))
	}

	if p := self.Pending; p != nil && p.Kind == intent.KindMove && p.Offset != nil {
		if r, ok := arrows[*p.Offset]; ok {
			at := self.Pos.Add(*p.Offset)
			screen.SetContent(at.X, at.Y, r, nil, styleSelf)
		}
	}
}

func glyph(e world.Entity, walls map[world.Position]bool) rune {
	if e.Defeated() {
		return '%'
	}
	if e.Kind == "wall" {
		bits := 0
		for i, d := range []world.Position{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}} {
			if walls[e.Pos.Add(d)] {
				bits |= 1 << i
			}
		}
		return wallChars[bits]
	}
	if r, ok := glyphs[e.Kind]; ok {
		return r
	}
	return '?'
}

func style(e world.Entity, self world.EntityID) tcell.Style {
	switch {
	case e.Defeated():
		return styleDefeated
	case e.ID == self:
		return styleSelf
	}
	if s, ok := kindStyles[e.Kind]; ok {
		return s
	}
	return styleDefault
}

func drawVitality(screen tcell.Screen, self world.Entity, w, h int) {
	v := self.Vitality
	if v == nil || v.MaxHP <= 0 || w <= 0 {
		return
	}
	full := v.HP * w / v.MaxHP
	for x := 0; x < w; x++ {
		r := '-'
		if x < full {
			r = '='
		}
		screen.SetContent(x, h-1, r, nil, styleDefault)
	}
}

func drawChat(screen tcell.Screen, lines []world.ChatLine) {
	for i, l := range lines {
		x := put(screen, panelX, i, l.Sender+": ", styleSender)
		put(screen, x, i, l.Text, styleDefault)
	}
}

func drawInventory(screen tcell.Screen, inv []world.Entity, cursor int) {
	put(screen, panelX, 0, "Inventory", styleDefault)
	for i, e := range inv {
		marker, st := "  ", styleDefault
		if i == cursor {
			marker, st = "> ", styleSelected
		}
		put(screen, panelX+2, i+1, marker+e.Kind, st)
	}
}

// put writes s starting at (x, y) and returns the column after it.
func put(screen tcell.Screen, x, y int, s string, st tcell.Style) int {
	for _, r := range s {
		screen.SetContent(x, y, r, nil, st)
		x++
	}
	return x
}

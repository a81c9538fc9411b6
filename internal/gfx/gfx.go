// Package gfx is an optional 2D drawing backend on ebiten. Scripts draw by
// calling the gfx_* builtins; drawing calls are recorded per frame and
// replayed onto the window.
package gfx

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"kestrel/internal/logging"
)

var ErrNotRunning = errors.New("gfx backend not running (use `kestrel gfx <file>`)")

type LoopFuncs struct {
	Setup  func() error
	Update func(dt float64) error
	Draw   func() error
}

type state struct {
	mu          sync.Mutex
	width       int
	height      int
	title       string
	commands    []command
	clear       color.RGBA
	start       time.Time
	lastTime    time.Time
	shouldClose bool
	// window is set once a real ebiten window backs the state.
	window bool
}

func newState() *state {
	return &state{
		width:  640,
		height: 480,
		title:  "Kestrel",
		clear:  color.RGBA{A: 255},
	}
}

type command interface {
	draw(dst *ebiten.Image)
}

type rectCmd struct {
	x, y, w, h float32
	c          color.RGBA
}

func (r rectCmd) draw(dst *ebiten.Image) {
	vector.DrawFilledRect(dst, r.x, r.y, r.w, r.h, r.c, false)
}

type lineCmd struct {
	x0, y0, x1, y1 float32
	c              color.RGBA
}

func (l lineCmd) draw(dst *ebiten.Image) {
	vector.StrokeLine(dst, l.x0, l.y0, l.x1, l.y1, 1, l.c, true)
}

type circleCmd struct {
	x, y, r float32
	c       color.RGBA
}

func (c circleCmd) draw(dst *ebiten.Image) {
	vector.DrawFilledCircle(dst, c.x, c.y, c.r, c.c, true)
}

var (
	stateMu sync.Mutex
	cur     *state
)

func install(s *state) {
	stateMu.Lock()
	cur = s
	stateMu.Unlock()
}

func uninstall() { install(nil) }

// Run opens the window and drives loop until the window closes or a
// callback fails.
func Run(loop LoopFuncs) error {
	s := newState()
	s.window = true
	install(s)
	defer uninstall()

	if loop.Setup != nil {
		if err := loop.Setup(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.start = time.Now()
	s.lastTime = s.start
	width, height, title := s.width, s.height, s.title
	s.mu.Unlock()

	logging.Gfx().Infof("opening %dx%d window %q", width, height, title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle(title)

	return ebiten.RunGame(&game{loop: loop, state: s})
}

type game struct {
	loop  LoopFuncs
	state *state
}

func (g *game) Update() error {
	if err := g.state.frame(g.loop); err != nil {
		return err
	}

	s := g.state
	s.mu.Lock()
	s.shouldClose = s.shouldClose || ebiten.IsWindowBeingClosed()
	done := s.shouldClose
	s.mu.Unlock()
	if done {
		return ebiten.Termination
	}
	return nil
}

// frame runs one update and one draw. Commands from the previous frame are
// dropped before draw.
func (s *state) frame(loop LoopFuncs) error {
	s.mu.Lock()
	now := time.Now()
	dt := now.Sub(s.lastTime).Seconds()
	s.lastTime = now
	s.mu.Unlock()

	if loop.Update != nil {
		if err := loop.Update(dt); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.commands = s.commands[:0]
	s.mu.Unlock()

	if loop.Draw != nil {
		return loop.Draw()
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	s := g.state
	s.mu.Lock()
	clear := s.clear
	cmds := append([]command(nil), s.commands...)
	s.mu.Unlock()

	screen.Fill(clear)
	for _, cmd := range cmds {
		cmd.draw(screen)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := g.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func Open(width, height int, title string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return errors.New("gfx_open expects positive width/height")
	}
	s.mu.Lock()
	s.width = width
	s.height = height
	if title != "" {
		s.title = title
	}
	window := s.window
	s.mu.Unlock()
	if window {
		ebiten.SetWindowSize(width, height)
		if title != "" {
			ebiten.SetWindowTitle(title)
		}
	}
	return nil
}

func Close() error {
	s, err := getState()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.shouldClose = true
	s.mu.Unlock()
	return nil
}

func ShouldClose() bool {
	s, err := getState()
	if err != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldClose
}

func Clear(c color.RGBA) error {
	s, err := getState()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.clear = c
	s.mu.Unlock()
	return nil
}

func (s *state) record(cmd command) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

func Rect(x, y, w, h float64, c color.RGBA) error {
	s, err := getState()
	if err != nil {
		return err
	}
	s.record(rectCmd{x: float32(x), y: float32(y), w: float32(w), h: float32(h), c: c})
	return nil
}

func Pixel(x, y int, c color.RGBA) error {
	return Rect(float64(x), float64(y), 1, 1, c)
}

func Line(x0, y0, x1, y1 float64, c color.RGBA) error {
	s, err := getState()
	if err != nil {
		return err
	}
	s.record(lineCmd{x0: float32(x0), y0: float32(y0), x1: float32(x1), y1: float32(y1), c: c})
	return nil
}

func Circle(x, y, r float64, c color.RGBA) error {
	s, err := getState()
	if err != nil {
		return err
	}
	if r < 0 {
		return fmt.Errorf("gfx_circle expects a non-negative radius, got %g", r)
	}
	s.record(circleCmd{x: float32(x), y: float32(y), r: float32(r), c: c})
	return nil
}

func TimeSeconds() (float64, error) {
	s, err := getState()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		return 0, nil
	}
	return time.Since(s.start).Seconds(), nil
}

func KeyDown(key string) (bool, error) {
	if _, err := getState(); err != nil {
		return false, err
	}
	k, ok := keyMap[strings.ToLower(key)]
	if !ok {
		return false, errors.New("unknown key: " + key)
	}
	return ebiten.IsKeyPressed(k), nil
}

func Mouse() (int, int, error) {
	if _, err := getState(); err != nil {
		return 0, 0, err
	}
	x, y := ebiten.CursorPosition()
	return x, y, nil
}

func getState() (*state, error) {
	stateMu.Lock()
	defer stateMu.Unlock()
	if cur == nil {
		return nil, ErrNotRunning
	}
	return cur, nil
}

// RGBA builds a color from channels in 0..255.
func RGBA(r, g, b, a float64) (color.RGBA, error) {
	var out [4]uint8
	for i, v := range [4]float64{r, g, b, a} {
		if v < 0 || v > 255 || math.IsNaN(v) || math.IsInf(v, 0) {
			return color.RGBA{}, errors.New("color channels must be 0..255")
		}
		out[i] = uint8(math.Round(v))
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}

var keyMap = map[string]ebiten.Key{
	"space":  ebiten.KeySpace,
	"enter":  ebiten.KeyEnter,
	"escape": ebiten.KeyEscape,
	"left":   ebiten.KeyArrowLeft,
	"right":  ebiten.KeyArrowRight,
	"up":     ebiten.KeyArrowUp,
	"down":   ebiten.KeyArrowDown,
	"shift":  ebiten.KeyShift,
	"ctrl":   ebiten.KeyControl,
	"alt":    ebiten.KeyAlt,
}

func init() {
	for ch := 'a'; ch <= 'z'; ch++ {
		keyMap[string(ch)] = ebiten.KeyA + ebiten.Key(ch-'a')
	}
	for ch := '0'; ch <= '9'; ch++ {
		keyMap[string(ch)] = ebiten.Key0 + ebiten.Key(ch-'0')
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"

	"pixelroom/presence"
)

// screen 登录表单的输入状态；游戏画面完全由视图渲染
type screen struct {
	input []rune
	alert string
}

// handle 处理一个终端事件，返回是否退出
func (s *screen) handle(sess *presence.Session, ev termbox.Event) bool {
	if ev.Type != termbox.EventKey {
		return false
	}
	if ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC {
		return true
	}

	if sess.State() == presence.LoggedIn {
		switch ev.Key {
		case termbox.KeyCtrlL:
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			sess.Logout(ctx)
			cancel()
			s.input = s.input[:0]
		default:
			sess.Controller().HandleKey(keyName(ev.Key))
		}
		return false
	}

	switch ev.Key {
	case termbox.KeyEnter:
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		err := sess.Login(ctx, string(s.input))
		cancel()
		if errors.Is(err, presence.ErrNameRequired) {
			s.alert = "Please enter a nickname!"
			return false
		}
		s.alert = ""
	case termbox.KeyBackspace, termbox.KeyBackspace2:
		if len(s.input) > 0 {
			s.input = s.input[:len(s.input)-1]
		}
	case termbox.KeySpace:
		s.input = append(s.input, ' ')
	default:
		if ev.Ch != 0 {
			s.input = append(s.input, ev.Ch)
		}
	}
	return false
}

// keyName 终端方向键映射为浏览器键名
func keyName(k termbox.Key) string {
	switch k {
	case termbox.KeyArrowUp:
		return "ArrowUp"
	case termbox.KeyArrowDown:
		return "ArrowDown"
	case termbox.KeyArrowLeft:
		return "ArrowLeft"
	case termbox.KeyArrowRight:
		return "ArrowRight"
	}
	return ""
}

func (s *screen) draw(sess *presence.Session) {
	_ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	drawText(0, 0, "Pixel Realtime Game", termbox.AttrBold, termbox.ColorDefault)
	if sess.State() == presence.LoggedIn {
		drawGame(sess)
	} else {
		drawLogin(s)
	}
	_ = termbox.Flush()
}

func drawLogin(s *screen) {
	drawText(0, 2, "Enter the Game", termbox.ColorDefault, termbox.ColorDefault)
	drawText(0, 3, "Nickname: "+string(s.input)+"_", termbox.ColorDefault, termbox.ColorDefault)
	drawText(0, 4, "[Enter] Join Game   [Esc] Quit", termbox.ColorDefault, termbox.ColorDefault)
	if s.alert != "" {
		drawText(0, 6, s.alert, termbox.ColorRed, termbox.ColorDefault)
	}
}

// drawGame 场地按终端大小缩放：顶部一行标题，底部两行信息
func drawGame(sess *presence.Session) {
	w, h := termbox.Size()
	top, fieldW, fieldH := 1, w, h-3
	if fieldW < 2 || fieldH < 2 {
		return
	}
	f := presence.DefaultField

	for x := 0; x < fieldW; x++ {
		termbox.SetCell(x, top+fieldH, '─', termbox.ColorDefault, termbox.ColorDefault)
	}

	for _, sp := range presence.RenderAll(sess.Sync().Players(), f) {
		col, row, width := cellRect(sp, f, fieldW, fieldH)
		row += top
		color := hexAttribute(sp.Color)
		for i := 0; i < width; i++ {
			termbox.SetCell(col+i, row, '●', color, termbox.ColorDefault)
		}
		if avail := fieldW - col - width - 1; avail > 0 {
			drawText(col+width+1, row, runewidth.Truncate(sp.Label, avail, "…"), color, termbox.ColorDefault)
		}
	}

	if me, ok := sess.Local(); ok {
		// 标题行右侧显示自己的 Player ID
		title := presence.Render(me, f).Title
		if tw := runewidth.StringWidth(title); tw < w {
			drawText(w-tw, 0, title, termbox.ColorDefault, termbox.ColorDefault)
		}
		drawText(0, h-2, fmt.Sprintf("Hello, %s! (Move with Arrow Keys)   Your Position: (%d, %d)", me.Name, me.X, me.Y),
			termbox.ColorDefault, termbox.ColorDefault)
	}
	drawText(0, h-1, "[Ctrl+L] Leave Game   [Esc] Quit", termbox.ColorDefault, termbox.ColorDefault)
}

// cellRect 像素坐标缩放到终端单元格；标记至少占一格
func cellRect(sp presence.Sprite, f presence.Field, cols, rows int) (col, row, width int) {
	col = sp.Left * cols / f.Width
	row = sp.Top * rows / f.Height
	width = sp.Size * cols / f.Width
	if width < 1 {
		width = 1
	}
	if col+width > cols {
		width = cols - col
	}
	return col, row, width
}

func drawText(x, y int, text string, fg, bg termbox.Attribute) {
	for _, r := range text {
		termbox.SetCell(x, y, r, fg, bg)
		x += runewidth.RuneWidth(r)
	}
}

// hexAttribute 把 #RRGGBB 映射到 256 色立方（Output256 下属性值 = 颜色号 + 1）
func hexAttribute(hex string) termbox.Attribute {
	if len(hex) != 7 || hex[0] != '#' {
		return termbox.ColorDefault
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return termbox.ColorDefault
	}
	r, g, b := int(v>>16&0xFF), int(v>>8&0xFF), int(v&0xFF)
	cube := func(c int) int { return c * 5 / 255 }
	return termbox.Attribute(16+36*cube(r)+6*cube(g)+cube(b)) + 1
}

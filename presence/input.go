package presence

// Direction 移动方向
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

// ParseKey 识别四个方向键（浏览器键名），其他键返回 DirNone
func ParseKey(name string) Direction {
	switch name {
	case "ArrowUp":
		return DirUp
	case "ArrowDown":
		return DirDown
	case "ArrowLeft":
		return DirLeft
	case "ArrowRight":
		return DirRight
	default:
		return DirNone
	}
}

// Controller 把方向键转换为本地玩家的有界位移
type Controller struct {
	field Field
	sync  *Synchronizer
}

func NewController(field Field, s *Synchronizer) *Controller {
	return &Controller{field: field, sync: s}
}

// HandleKey 按键名处理，返回是否产生了移动
func (c *Controller) HandleKey(name string) bool {
	return c.Press(ParseKey(name))
}

// Press 计算候选位置并裁剪；位置有变化才提交给同步器
func (c *Controller) Press(dir Direction) bool {
	p, ok := c.sync.Local()
	if !ok || dir == DirNone {
		return false
	}
	x, y := p.X, p.Y
	switch dir {
	case DirUp:
		y -= c.field.Step
	case DirDown:
		y += c.field.Step
	case DirLeft:
		x -= c.field.Step
	case DirRight:
		x += c.field.Step
	}
	x, y = c.field.Clamp(x, y)
	if x == p.X && y == p.Y {
		return false
	}
	c.sync.MoveLocal(x, y)
	return true
}

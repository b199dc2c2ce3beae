package presence

// Sprite 场上的一个可视元素（像素坐标）
type Sprite struct {
	ID    string
	Left  int
	Top   int
	Size  int
	Color string
	Label string
	Title string
}

// Render 纯函数：PlayerState -> Sprite，无状态，无副作用
func Render(p PlayerState, f Field) Sprite {
	return Sprite{
		ID:    p.ID,
		Left:  p.X,
		Top:   p.Y,
		Size:  f.Marker,
		Color: p.Color,
		Label: p.Name,
		Title: "Player ID: " + p.ID,
	}
}

// RenderAll 按视图顺序渲染
func RenderAll(players []PlayerState, f Field) []Sprite {
	out := make([]Sprite, len(players))
	for i, p := range players {
		out[i] = Render(p, f)
	}
	return out
}

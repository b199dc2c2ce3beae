// Package presence 客户端状态同步：本地视图、节流广播、会话生命周期、键盘输入与渲染映射。
//
// 包内类型都不是并发安全的，只能在客户端事件循环的单个协程里调用；
// 唯一的例外是移动触发的存储写入，它们在独立协程里发出，完成后只记录日志。
package presence

import (
	"fmt"
	"math/rand"
	"time"
)

// PlayerState 唯一的实体，整条记录替换，从不按字段合并
type PlayerState struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
	Name  string `json:"name"`
	// 每个写者单调递增；视图和存储只接受更大的 seq
	Seq int64 `json:"seq"`
}

// Field 游戏区域与标记尺寸
type Field struct {
	Width  int
	Height int
	Marker int // 标记边长
	Step   int // 每次按键移动距离
}

// DefaultField 800x600，标记 20，步长 10
var DefaultField = Field{Width: 800, Height: 600, Marker: 20, Step: 10}

func (f Field) maxX() int { return f.Width - f.Marker }
func (f Field) maxY() int { return f.Height - f.Marker }

// Clamp 将坐标裁剪到 [0, 边长 - 标记尺寸]
func (f Field) Clamp(x, y int) (int, int) {
	return clamp(x, 0, f.maxX()), clamp(y, 0, f.maxY())
}

// RandomPosition 区域内的随机初始位置
func (f Field) RandomPosition(r *rand.Rand) (int, int) {
	return r.Intn(f.maxX()), r.Intn(f.maxY())
}

// RandomColor 随机 #RRGGBB
func RandomColor(r *rand.Rand) string {
	return fmt.Sprintf("#%06X", r.Intn(1<<24))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nextSeq 取 max(prev+1, 当前纳秒)，进程重启后仍然单调
func nextSeq(prev int64, now time.Time) int64 {
	if n := now.UnixNano(); n > prev {
		return n
	}
	return prev + 1
}

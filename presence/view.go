package presence

import "sort"

// View 本地视图：id -> PlayerState。尽力而为，可能暂时与存储不一致
type View struct {
	players map[string]PlayerState
}

func NewView() *View {
	return &View{players: make(map[string]PlayerState)}
}

// Get 按 id 查找
func (v *View) Get(id string) (PlayerState, bool) {
	p, ok := v.players[id]
	return p, ok
}

func (v *View) Len() int { return len(v.players) }

// Put 无条件写入（本地玩家）
func (v *View) Put(p PlayerState) {
	v.players[p.ID] = p
}

// Merge 插入新 id，或在 seq 更大时整条替换；返回是否生效。
// 同一载荷重复应用结果不变
func (v *View) Merge(p PlayerState) bool {
	if cur, ok := v.players[p.ID]; ok && p.Seq <= cur.Seq {
		return false
	}
	v.players[p.ID] = p
	return true
}

// Remove 删除 id，不存在时什么也不做
func (v *View) Remove(id string) bool {
	if _, ok := v.players[id]; !ok {
		return false
	}
	delete(v.players, id)
	return true
}

// Players 按 id 排序的副本，渲染顺序稳定
func (v *View) Players() []PlayerState {
	out := make([]PlayerState, 0, len(v.players))
	for _, p := range v.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *View) Reset() {
	v.players = make(map[string]PlayerState)
}

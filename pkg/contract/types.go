package contract

import (
	"strconv"

	"github.com/paulmach/orb"
)

// DatasetID: 逻辑数据集ID（通常为输入路径，需规范化，跨平台一致）。
type DatasetID string

// GroupKey: 轨迹（线组）标识；同一 GroupKey 的点属于同一条轨迹。
type GroupKey string

// SortKey: 组内排序键。两侧均可解析为数字时按数值比较，否则按字典序比较。
type SortKey string

// Compare 返回 -1/0/1。
func (k SortKey) Compare(o SortKey) int {
	a, errA := strconv.ParseFloat(string(k), 64)
	b, errB := strconv.ParseFloat(string(o), 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	switch {
	case k < o:
		return -1
	case k > o:
		return 1
	default:
		return 0
	}
}

// Point: 原子输入记录（解码后只读，不可变）。
// 约束：
// - 同一数据集内 ID 唯一；
// - 组内按 Sort 非降序排列（允许并列，但并列会导致方位角退化）。
type Point struct {
	ID        int64
	Group     GroupKey
	Sort      SortKey
	Primary   float64 // 驱动宽度的主属性
	Secondary float64 // 原样携带的次属性
	X         float64
	Y         float64
}

// Coord 返回平面坐标。
func (p Point) Coord() orb.Point { return orb.Point{p.X, p.Y} }

// Fields: 输入字段名映射（由解码器解释）。
// ID 为空时由解码器按 1 起的行序号分配。
type Fields struct {
	ID        string `json:"id"`
	Group     string `json:"group"`
	Sort      string `json:"sort"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	X         string `json:"x"`
	Y         string `json:"y"`
}

// Position: 点在所属轨迹内的位置分类。
type Position int

const (
	PositionFirst Position = iota
	PositionInterior
	PositionPenultimate
	PositionLast
	PositionDegenerate
)

func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionInterior:
		return "interior"
	case PositionPenultimate:
		return "penultimate"
	case PositionLast:
		return "last"
	default:
		return "degenerate"
	}
}

// CapStyle: 轨迹端点的封口样式（全局一次性选定）。
type CapStyle string

const (
	CapButt  CapStyle = "butt"
	CapTaper CapStyle = "taper"
)

// Segment: 条带分段，输出的基本单位。
// 约束：
// - Ring 为 3 或 4 个顶点，首点不在末尾重复（闭合由 Sink 按格式自行处理）；
// - 顶点顺序：先沿前进方向的左侧偏移边，再回到右侧偏移边；
// - Classed* 仅在分级（stepped）模式下有效（HasClass=true）。
type Segment struct {
	PointID       int64
	Group         GroupKey
	Sort          SortKey
	Position      Position
	Cap           CapStyle
	PrimaryFrom   float64
	PrimaryTo     float64
	HasClass      bool
	ClassedFrom   int
	ClassedTo     int
	SecondaryFrom float64
	SecondaryTo   float64
	Bearing       float64
	Ring          []orb.Point
}

package contract

import "github.com/paulmach/orb"

// WidthMapper: 属性值 → 半宽（单侧偏移距离）。
// 实现需为纯函数：确定性、无副作用。
type WidthMapper interface {
	// HalfWidth 返回 v 对应的单侧偏移距离。
	HalfWidth(v float64) float64
	// Classify 返回 v 所属的类号（1..N）；非分级模式返回 ok=false。
	Classify(v float64) (class int, ok bool)
}

// Projector: 自 origin 沿 bearing（度，自 +y 顺时针）移动 distance 得到的点。
// 距离模型（平面/大圆）属于坐标参考系的性质，由配置选择。
type Projector interface {
	Project(origin orb.Point, bearing, distance float64) orb.Point
}

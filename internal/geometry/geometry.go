// Package geometry 提供方位角计算、垂直偏移投影与环有效性检查。
//
// 方位角约定：atan2(Δx, Δy)，单位为度，自 +y（北）顺时针。
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"ribbonify/pkg/contract"
)

// ErrZeroLength: 两点重合，方位角无定义。
var ErrZeroLength = fmt.Errorf("%w: zero-length segment", contract.ErrGeometry)

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

// Bearing 返回 from→to 的方位角（度，范围 (-180, 180]）。
// 重合点返回 ErrZeroLength，非有限坐标返回 ErrGeometry，从不静默返回 0。
func Bearing(from, to orb.Point) (float64, error) {
	if !finite(from) || !finite(to) {
		return 0, fmt.Errorf("%w: non-finite coordinate", contract.ErrGeometry)
	}
	dx, dy := to[0]-from[0], to[1]-from[1]
	if dx == 0 && dy == 0 {
		return 0, ErrZeroLength
	}
	return s1.Angle(math.Atan2(dx, dy)).Degrees(), nil
}

// Planar: 欧氏平面投影（投影坐标系，单位与坐标一致）。
type Planar struct{}

func (Planar) Project(origin orb.Point, bearing, distance float64) orb.Point {
	rad := (s1.Angle(bearing) * s1.Degree).Radians()
	return orb.Point{origin[0] + distance*math.Sin(rad), origin[1] + distance*math.Cos(rad)}
}

// Geodesic: 球面大圆投影；坐标为经纬度（度），距离单位为米。
type Geodesic struct{}

func (Geodesic) Project(origin orb.Point, bearing, distance float64) orb.Point {
	return geoPointAt(origin, bearing, distance)
}

var (
	_ contract.Projector = Planar{}
	_ contract.Projector = Geodesic{}
)

// Offsets 返回 p 两侧距离 half 的偏移点：left 在 bearing-90，right 在 bearing+90。
func Offsets(p orb.Point, bearing, half float64, proj contract.Projector) (left, right orb.Point) {
	return proj.Project(p, bearing-90, half), proj.Project(p, bearing+90, half)
}

// ErrDegenerateRing: 环面积为 0 或非有限。
var ErrDegenerateRing = fmt.Errorf("%w: degenerate ring", contract.ErrGeometry)

// CheckRing 校验未闭合的环：顶点有限且平面面积非零。
func CheckRing(ring []orb.Point) error {
	if len(ring) < 3 {
		return fmt.Errorf("%w: ring has %d vertices", contract.ErrGeometry, len(ring))
	}
	for _, p := range ring {
		if !finite(p) {
			return fmt.Errorf("%w: non-finite vertex", contract.ErrGeometry)
		}
	}
	a := planar.Area(Close(ring))
	if a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return ErrDegenerateRing
	}
	return nil
}

// Close 返回首尾闭合的 orb.Ring（不修改入参）。
func Close(ring []orb.Point) orb.Ring {
	out := make(orb.Ring, 0, len(ring)+1)
	out = append(out, ring...)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		out = append(out, ring[0])
	}
	return out
}

// IsGeometry 判断错误是否属于可跳过的几何错误。
func IsGeometry(err error) bool { return errors.Is(err, contract.ErrGeometry) }

package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// 球面模型使用 orb.EarthRadius（WGS84 长半轴）。
func geoPointAt(origin orb.Point, bearing, distance float64) orb.Point {
	return geo.PointAtBearingAndDistance(origin, bearing, distance)
}

// Package record 定义各 Sink 共享的输出字段布局。
//
// 字段名沿用 POINT_FID / PRIMARY_VALUE_FROM ... 的命名，便于与既有 GIS 工作流对接。
package record

import (
	"strconv"

	"github.com/paulmach/orb"

	"ribbonify/internal/geometry"
	"ribbonify/pkg/contract"
)

const (
	PointFID           = "POINT_FID"
	Group              = "GROUP_KEY"
	Sort               = "SORT_KEY"
	Position           = "POSITION"
	Cap                = "CAP_STYLE"
	PrimaryValueFrom   = "PRIMARY_VALUE_FROM"
	PrimaryValueTo     = "PRIMARY_VALUE_TO"
	PrimaryClassedFrom = "PRIMARY_CLASSED_FROM"
	PrimaryClassedTo   = "PRIMARY_CLASSED_TO"
	SecondaryValueFrom = "SECONDARY_VALUE_FROM"
	SecondaryValueTo   = "SECONDARY_VALUE_TO"
	Bearing            = "BEARING"
)

// Columns 返回表格类输出的列顺序（不含几何列）。classed=false 时省略分级列。
func Columns(classed bool) []string {
	cols := []string{PointFID, Group, Sort, Position, Cap, PrimaryValueFrom, PrimaryValueTo}
	if classed {
		cols = append(cols, PrimaryClassedFrom, PrimaryClassedTo)
	}
	return append(cols, SecondaryValueFrom, SecondaryValueTo, Bearing)
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Strings 按 Columns(classed) 的顺序返回字段文本。
func Strings(s contract.Segment, classed bool) []string {
	row := []string{
		strconv.FormatInt(s.PointID, 10), string(s.Group), string(s.Sort),
		s.Position.String(), string(s.Cap), ftoa(s.PrimaryFrom), ftoa(s.PrimaryTo),
	}
	if classed {
		row = append(row, strconv.Itoa(s.ClassedFrom), strconv.Itoa(s.ClassedTo))
	}
	return append(row, ftoa(s.SecondaryFrom), ftoa(s.SecondaryTo), ftoa(s.Bearing))
}

// Values 按 Columns(classed) 的顺序返回原生类型字段（用于 SQL 参数）。
func Values(s contract.Segment, classed bool) []any {
	row := []any{s.PointID, string(s.Group), string(s.Sort), s.Position.String(), string(s.Cap), s.PrimaryFrom, s.PrimaryTo}
	if classed {
		row = append(row, s.ClassedFrom, s.ClassedTo)
	}
	return append(row, s.SecondaryFrom, s.SecondaryTo, s.Bearing)
}

// Properties 返回 GeoJSON 属性；分级列仅在 HasClass 时出现。
func Properties(s contract.Segment) map[string]any {
	p := map[string]any{
		PointFID:           s.PointID,
		Group:              string(s.Group),
		Sort:               string(s.Sort),
		Position:           s.Position.String(),
		Cap:                string(s.Cap),
		PrimaryValueFrom:   s.PrimaryFrom,
		PrimaryValueTo:     s.PrimaryTo,
		SecondaryValueFrom: s.SecondaryFrom,
		SecondaryValueTo:   s.SecondaryTo,
		Bearing:            s.Bearing,
	}
	if s.HasClass {
		p[PrimaryClassedFrom] = s.ClassedFrom
		p[PrimaryClassedTo] = s.ClassedTo
	}
	return p
}

// Polygon 闭合环并按外环逆时针（RFC 7946）定向；不修改 Segment.Ring。
func Polygon(s contract.Segment) orb.Polygon {
	ring := geometry.Close(s.Ring)
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	return orb.Polygon{ring}
}

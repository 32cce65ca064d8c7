package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（用于上层策略判定：中止或记录后继续）。
var (
	// ErrConfiguration: 配置非法（类数 <= 0、宽度区间非法等）；在产生任何输出前中止运行。
	ErrConfiguration = errors.New("configuration error")
	// ErrDegenerateRange: 主属性取值全部相同，区间为 0，无法映射宽度。
	ErrDegenerateRange = fmt.Errorf("%w: degenerate attribute range", ErrConfiguration)
	// ErrDegenerateGroup: 轨迹点数 < 3，无法构造基于方位角的封口；可恢复，跳过并告警。
	ErrDegenerateGroup = errors.New("degenerate group")
	// ErrGeometry: 几何构造失败（重合点、非有限坐标、零面积环）；可恢复，仅跳过该多边形。
	ErrGeometry = errors.New("geometry construction error")
	// ErrSinkWrite: 输出端拒绝单条记录；可恢复，记录后继续。
	ErrSinkWrite = errors.New("sink write error")
	// ErrOrderInvalid: 输入未按 group→sort 排序（组键回跳或组内排序键递减）。
	ErrOrderInvalid = errors.New("point order invalid")
	// ErrRecordInvalid: 输入记录无法解析（缺列、非数值坐标等）；中止当前数据集。
	ErrRecordInvalid = errors.New("input record invalid")
	// ErrEmptyDataset: 数据集没有任何点。
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)

// PointError 将错误与触发它的源点绑定，便于日志定位。
type PointError struct {
	PointID int64
	Group   GroupKey
	Err     error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("point %d (group %q): %v", e.PointID, e.Group, e.Err)
}

func (e *PointError) Unwrap() error { return e.Err }

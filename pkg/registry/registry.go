package registry

import (
	"bytes"
	"encoding/json"

	"ribbonify/internal/geometry"
	"ribbonify/internal/width"
	"ribbonify/pkg/contract"
	dcsv "ribbonify/plugins/decoder/csv"
	dgeo "ribbonify/plugins/decoder/geojson"
	rfs "ribbonify/plugins/reader/filesystem"
	scsv "ribbonify/plugins/sink/csv"
	sgeo "ribbonify/plugins/sink/geojson"
	spg "ribbonify/plugins/sink/pg"
	ssvg "ribbonify/plugins/sink/svg"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewDecoder 工厂签名：接收原样 JSON Options。
type NewDecoder func(raw json.RawMessage) (contract.Decoder, error)

// SinkEnv: 由运行配置推导、注入给 Sink 的环境信息。
type SinkEnv struct {
	// Classed: 宽度模式为分级时为 true，表格类 Sink 据此输出分级列。
	Classed bool
}

// NewSink 工厂签名：原样 JSON Options + 运行环境。
type NewSink func(raw json.RawMessage, env SinkEnv) (contract.Sink, error)

// NewWidth 工厂签名：需要预扫描汇总，因此按数据集构造。
type NewWidth func(s width.Summary, p width.Params) (contract.WidthMapper, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Decoder 工厂注册表。
var Decoder = map[string]NewDecoder{
	// csv: 带表头 CSV
	"csv": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts dcsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dcsv.New(&opts)
	},
	// geojson: Point 要素集合
	"geojson": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts dgeo.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dgeo.New(&opts)
	},
}

// Sink 工厂注册表。
var Sink = map[string]NewSink{
	"geojson": func(raw json.RawMessage, _ SinkEnv) (contract.Sink, error) {
		var opts sgeo.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sgeo.New(&opts)
	},
	"csv": func(raw json.RawMessage, env SinkEnv) (contract.Sink, error) {
		var opts scsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		opts.Classed = opts.Classed || env.Classed
		return scsv.New(&opts)
	},
	// svg: 预览渲染
	"svg": func(raw json.RawMessage, _ SinkEnv) (contract.Sink, error) {
		var opts ssvg.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssvg.New(&opts)
	},
	// pg: PostGIS 追加写入
	"pg": func(raw json.RawMessage, env SinkEnv) (contract.Sink, error) {
		var opts spg.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		opts.Classed = opts.Classed || env.Classed
		return spg.New(&opts)
	},
}

// Width 宽度映射注册表。
var Width = map[string]NewWidth{
	"stepped": func(s width.Summary, p width.Params) (contract.WidthMapper, error) { return width.NewStepped(s, p) },
	"linear":  func(s width.Summary, p width.Params) (contract.WidthMapper, error) { return width.NewLinear(s, p) },
}

// Projector 距离模型注册表（按 crs 选择）。
var Projector = map[string]contract.Projector{
	// projected: 投影坐标，欧氏平面
	"projected": geometry.Planar{},
	// geographic: 经纬度，球面大圆，偏移距离单位为米
	"geographic": geometry.Geodesic{},
}

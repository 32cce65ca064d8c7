package config

import (
	"encoding/json"

	"ribbonify/pkg/contract"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs []string `json:"inputs"`
	// Fields: 输入字段名映射，由解码器解释。
	Fields contract.Fields `json:"fields"`
	Width  Width           `json:"width"`
	// CapStyle: butt | taper
	CapStyle string `json:"cap_style"`
	// CRS: projected（平面坐标）| geographic（经纬度，测地线偏移）
	CRS         string  `json:"crs"`
	Concurrency int     `json:"concurrency"`
	Logging     Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Width: 宽度映射配置。宽度均为全宽，偏移量取其一半。
type Width struct {
	// Mode: stepped | linear
	Mode string `json:"mode"`
	// Classes: 分级数（仅 stepped）
	Classes int `json:"classes"`
	// MinWidth/MaxWidth 使用指针以区分“未设置”与显式 0。
	MinWidth *float64 `json:"min_width"`
	MaxWidth *float64 `json:"max_width"`
	// Rounding: half_even | half_away | none（仅 linear）
	Rounding string `json:"rounding"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader  string `json:"reader"`
	Decoder string `json:"decoder"`
	Sink    string `json:"sink"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader  json.RawMessage `json:"reader"`
	Decoder json.RawMessage `json:"decoder"`
	Sink    json.RawMessage `json:"sink"`
}

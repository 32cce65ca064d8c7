package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ribbonify/internal/width"
	"ribbonify/pkg/contract"
)

// EnvPrefix 为环境变量前缀。
const EnvPrefix = "RIBBONIFY_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Fields: contract.Fields{
			Group:     "group",
			Sort:      "sort",
			Primary:   "primary",
			Secondary: "secondary",
			X:         "x",
			Y:         "y",
		},
		Width: Width{
			Mode:     "stepped",
			Classes:  5,
			MinWidth: ptr(1),
			MaxWidth: ptr(10),
			Rounding: string(width.RoundHalfEven),
		},
		CapStyle:    string(contract.CapButt),
		CRS:         "projected",
		Concurrency: 1,
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader:  "fs",
			Decoder: "csv",
			Sink:    "geojson",
		},
	}
}

func ptr(v float64) *float64 { return &v }

// Load 按扩展名选择解析器：.yaml/.yml 走 YAML，其余按 JSON。
func Load(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, nil)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置：先解到通用树，再转为 JSON 走同一严格解码，
// 保证两种格式的字段集合与 options 子树语义一致。
func LoadYAML(path string, raw []byte) (Config, error) {
	if len(raw) == 0 {
		if path == "" {
			return Config{}, errors.New("no config source provided")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		raw = b
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfiguration, err)
	}
	if len(tree) == 0 {
		return Config{}, nil
	}
	js, err := json.Marshal(tree)
	if err != nil {
		return Config{}, fmt.Errorf("%w: yaml to json: %v", contract.ErrConfiguration, err)
	}
	return LoadJSON("", js)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if s := strings.TrimSpace(over.CapStyle); s != "" {
		out.CapStyle = s
	}
	if s := strings.TrimSpace(over.CRS); s != "" {
		out.CRS = s
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}

	// 字段名：逐项替换；空不覆盖
	mergeField(&out.Fields.ID, over.Fields.ID)
	mergeField(&out.Fields.Group, over.Fields.Group)
	mergeField(&out.Fields.Sort, over.Fields.Sort)
	mergeField(&out.Fields.Primary, over.Fields.Primary)
	mergeField(&out.Fields.Secondary, over.Fields.Secondary)
	mergeField(&out.Fields.X, over.Fields.X)
	mergeField(&out.Fields.Y, over.Fields.Y)

	// 宽度
	mergeField(&out.Width.Mode, over.Width.Mode)
	mergeField(&out.Width.Rounding, over.Width.Rounding)
	if over.Width.Classes != 0 {
		out.Width.Classes = over.Width.Classes
	}
	if over.Width.MinWidth != nil {
		out.Width.MinWidth = ptr(*over.Width.MinWidth)
	}
	if over.Width.MaxWidth != nil {
		out.Width.MaxWidth = ptr(*over.Width.MaxWidth)
	}

	// 组件名（空不覆盖）
	mergeField(&out.Components.Reader, over.Components.Reader)
	mergeField(&out.Components.Decoder, over.Components.Decoder)
	mergeField(&out.Components.Sink, over.Components.Sink)

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Decoder) > 0 {
		out.Options.Decoder = cloneRaw(over.Options.Decoder)
	}
	if len(over.Options.Sink) > 0 {
		out.Options.Sink = cloneRaw(over.Options.Sink)
	}
	return out
}

func mergeField(dst *string, v string) {
	if t := strings.TrimSpace(v); t != "" {
		*dst = t
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 RIBBONIFY_；集合之外的键忽略；数值解析失败返回配置错误。
// 支持：INPUTS, CONCURRENCY, CAP_STYLE, CRS, LOG_LEVEL,
// WIDTH_{MODE,CLASSES,MIN,MAX,ROUNDING}, FIELDS_<NAME>, COMPONENTS_<NAME>, OPTIONS_<NAME>_JSON
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	var errs []error
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[:eq]
		val := strings.TrimSpace(kv[eq+1:])
		nk := strings.TrimPrefix(key, EnvPrefix)
		num := func(dst *int) {
			v, err := atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not an integer", contract.ErrConfiguration, key, val))
				return
			}
			*dst = v
		}
		flt := func(dst **float64) {
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not a number", contract.ErrConfiguration, key, val))
				return
			}
			*dst = ptr(v)
		}
		switch nk {
		case "INPUTS":
			if val != "" {
				over.Inputs = splitComma(val)
			}
		case "CONCURRENCY":
			num(&over.Concurrency)
		case "CAP_STYLE":
			over.CapStyle = val
		case "CRS":
			over.CRS = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "WIDTH_MODE":
			over.Width.Mode = val
		case "WIDTH_CLASSES":
			num(&over.Width.Classes)
		case "WIDTH_MIN":
			flt(&over.Width.MinWidth)
		case "WIDTH_MAX":
			flt(&over.Width.MaxWidth)
		case "WIDTH_ROUNDING":
			over.Width.Rounding = val
		case "FIELDS_ID":
			over.Fields.ID = val
		case "FIELDS_GROUP":
			over.Fields.Group = val
		case "FIELDS_SORT":
			over.Fields.Sort = val
		case "FIELDS_PRIMARY":
			over.Fields.Primary = val
		case "FIELDS_SECONDARY":
			over.Fields.Secondary = val
		case "FIELDS_X":
			over.Fields.X = val
		case "FIELDS_Y":
			over.Fields.Y = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_DECODER":
			over.Components.Decoder = val
		case "COMPONENTS_SINK":
			over.Components.Sink = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawOrNil(val)
		case "OPTIONS_DECODER_JSON":
			over.Options.Decoder = rawOrNil(val)
		case "OPTIONS_SINK_JSON":
			over.Options.Sink = rawOrNil(val)
		default:
			// RIBBONIFY_CONFIG_JSON 等由 CLI 处理
		}
	}
	return over, errors.Join(errs...)
}

// 空值视为未设置，避免清空 config 文件中的 options
func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

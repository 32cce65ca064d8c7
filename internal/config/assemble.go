package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"ribbonify/internal/pipeline"
	"ribbonify/internal/width"
	"ribbonify/pkg/contract"
	"ribbonify/pkg/registry"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: config: %s", contract.ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validate 对最小必要边界做静态校验；所有错误均包装 contract.ErrConfiguration。
// 数据相关的校验（例如主属性区间为 0）在运行期按数据集进行。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return invalid("inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return invalid("input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return invalid("'-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return invalid("concurrency must be >= 1")
	}
	if cfg.Fields.Primary == "" || cfg.Fields.X == "" || cfg.Fields.Y == "" {
		return invalid("fields.primary, fields.x and fields.y are required")
	}

	d := Defaults()
	mode := effName(cfg.Width.Mode, d.Width.Mode)
	if registry.Width[mode] == nil {
		return invalid("width mode %q not registered", mode)
	}
	p := params(cfg)
	if mode == "stepped" && p.Classes <= 0 {
		return invalid("width.classes must be > 0, got %d", p.Classes)
	}
	if math.IsNaN(p.MinWidth) || math.IsNaN(p.MaxWidth) || p.MinWidth < 0 || p.MaxWidth < p.MinWidth {
		return invalid("width bounds invalid (min=%g max=%g)", p.MinWidth, p.MaxWidth)
	}
	switch p.Rounding {
	case width.RoundHalfEven, width.RoundHalfAway, width.RoundNone:
	default:
		return invalid("width.rounding %q unknown", p.Rounding)
	}
	switch contract.CapStyle(effName(cfg.CapStyle, d.CapStyle)) {
	case contract.CapButt, contract.CapTaper:
	default:
		return invalid("cap_style %q unknown (butt|taper)", cfg.CapStyle)
	}
	if crs := effName(cfg.CRS, d.CRS); registry.Projector[crs] == nil {
		return invalid("crs %q unknown (projected|geographic)", crs)
	}

	// 组件名若为空，使用默认名。此处只要最终有值即可。
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return invalid("reader %q not registered", name)
	}
	if name := effName(cfg.Components.Decoder, d.Components.Decoder); registry.Decoder[name] == nil {
		return invalid("decoder %q not registered", name)
	}
	if name := effName(cfg.Components.Sink, d.Components.Sink); registry.Sink[name] == nil {
		return invalid("sink %q not registered", name)
	}
	return nil
}

func params(cfg Config) width.Params {
	d := Defaults()
	p := width.Params{
		Classes:  cfg.Width.Classes,
		MinWidth: *d.Width.MinWidth,
		MaxWidth: *d.Width.MaxWidth,
		Rounding: width.Rounding(effName(cfg.Width.Rounding, d.Width.Rounding)),
	}
	if cfg.Width.MinWidth != nil {
		p.MinWidth = *cfg.Width.MinWidth
	}
	if cfg.Width.MaxWidth != nil {
		p.MaxWidth = *cfg.Width.MaxWidth
	}
	return p
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	dn := effName(cfg.Components.Decoder, d.Components.Decoder)
	sn := effName(cfg.Components.Sink, d.Components.Sink)
	mode := effName(cfg.Width.Mode, d.Width.Mode)

	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapOpts("reader", rn, err)
	}
	dec, err := registry.Decoder[dn](cfg.Options.Decoder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapOpts("decoder", dn, err)
	}
	// 分级列仅在 stepped 模式下有意义
	sink, err := registry.Sink[sn](cfg.Options.Sink, registry.SinkEnv{Classed: mode == "stepped"})
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapOpts("sink", sn, err)
	}

	comp := pipeline.Components{Reader: r, Decoder: dec, Sink: sink}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Fields:      cfg.Fields,
		WidthMode:   mode,
		Width:       params(cfg),
		NewWidth:    pipeline.NewWidth(registry.Width[mode]),
		Cap:         contract.CapStyle(effName(cfg.CapStyle, d.CapStyle)),
		Projector:   registry.Projector[effName(cfg.CRS, d.CRS)],
		Concurrency: cfg.Concurrency,
	}
	return comp, set, nil
}

// wrapOpts 保证 options 解析失败同样归类为配置错误。
func wrapOpts(kind, name string, err error) error {
	if errors.Is(err, contract.ErrConfiguration) {
		return fmt.Errorf("config: %s %q: %w", kind, name, err)
	}
	return fmt.Errorf("%w: config: %s %q options: %v", contract.ErrConfiguration, kind, name, err)
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}

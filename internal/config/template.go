package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），CSV 解码，GeoJSON 输出到 ./out 目录；
// - 宽度为 5 级分级映射，butt 封口，平面坐标；
// - 选项包含全部键，值为安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := d
	cfg.Inputs = []string{"-"}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "extensions": [".csv", ".txt", ".geojson", ".json"]
}`)
	cfg.Options.Decoder = json.RawMessage(`{
  "delimiter": ",",
  "comment": "",
  "extensions": [".csv", ".txt"],
  "sort": false
}`)
	cfg.Options.Sink = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536,
  "ext": ".geojson"
}`)
	return cfg
}

// TemplateEnv 返回 .env 模板内容（全部注释，按需启用）。
func TemplateEnv() string {
	return `# ribbonify 环境变量覆盖（优先级：默认 < 配置文件 < 环境变量 < 命令行）
# RIBBONIFY_INPUTS=data/tracks.csv
# RIBBONIFY_CONCURRENCY=4
# RIBBONIFY_CAP_STYLE=taper
# RIBBONIFY_CRS=geographic
# RIBBONIFY_LOG_LEVEL=debug
# RIBBONIFY_WIDTH_MODE=linear
# RIBBONIFY_WIDTH_CLASSES=5
# RIBBONIFY_WIDTH_MIN=1
# RIBBONIFY_WIDTH_MAX=10
# RIBBONIFY_WIDTH_ROUNDING=half_even
# RIBBONIFY_FIELDS_PRIMARY=count
# RIBBONIFY_COMPONENTS_SINK=pg
# RIBBONIFY_OPTIONS_SINK_JSON={"dsn":"postgres://localhost/gis?sslmode=disable","table":"ribbons","srid":4326}
`
}

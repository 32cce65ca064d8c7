package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	cfgpkg "ribbonify/internal/config"
	"ribbonify/internal/diag"
	"ribbonify/internal/pipeline"
	"ribbonify/pkg/contract"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败；3 配置/装配失败。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// 简化的 CLI：默认子命令 run。
// 位置参数为输入根（文件/目录 或 "-" 表示 STDIN，不能与其他根混用）。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前加载工作目录下的 .env（godotenv.Load 不覆盖已有 ENV）
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fprintf(os.Stderr, "提示：.env 解析失败（已跳过）：%v\n", err)
		}
	}
	// 先以 info 占位，合并配置后按最终 level 重建
	logger := diag.NewLogger(corrID, "info")
	defer func() { _ = logger.Close() }()

	var (
		flagConfig      string
		flagCap         string
		flagWidthMode   string
		flagClasses     int
		flagMinWidth    float64
		flagMaxWidth    float64
		flagCRS         string
		flagConcurrency int
		flagLogLevel    string
		flagInitDir     string
		flagStatus      bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON 或 YAML）；缺省读取 ./config.json（若存在）")
	flag.StringVar(&flagCap, "cap", "", "封口样式 butt|taper（覆盖配置）")
	flag.StringVar(&flagWidthMode, "width-mode", "", "宽度模式 stepped|linear（覆盖配置）")
	flag.IntVar(&flagClasses, "classes", 0, "分级数（stepped；覆盖配置）")
	flag.Float64Var(&flagMinWidth, "min-width", 0, "最小全宽（覆盖配置）")
	flag.Float64Var(&flagMaxWidth, "max-width", 0, "最大全宽（覆盖配置）")
	flag.StringVar(&flagCRS, "crs", "", "坐标系 projected|geographic（覆盖配置）")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "并发度（覆盖配置）")
	flag.StringVar(&flagLogLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（已存在则不覆盖）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	normalizeInitArg()
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return exitConfig
	}
	// 0 是合法的宽度值，只有显式传入的旗标才覆盖
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	roots := flag.Args()

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init-config failed", &start)
			return exitConfig
		}
		if err := writeConfig(filepath.Join(initDir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init-config failed", &start)
			return exitConfig
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return exitOK
	}

	// 配置来源：文件，或 ENV: RIBBONIFY_CONFIG_JSON
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if flagConfig == "" {
		flagConfig = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if flagConfig == "" && len(cfgJSON) == 0 {
		if _, err := os.Stat("config.json"); err == nil {
			flagConfig = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgJSON) > 0 {
		var base cfgpkg.Config
		var err error
		if len(cfgJSON) > 0 {
			base, err = cfgpkg.LoadJSON("", cfgJSON)
		} else {
			base, err = cfgpkg.Load(flagConfig)
		}
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "config load failed", &start)
			return exitConfig
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "env overlay failed", &start)
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	var overCLI cfgpkg.Config
	overCLI.CapStyle = flagCap
	overCLI.CRS = flagCRS
	overCLI.Width.Mode = flagWidthMode
	overCLI.Logging.Level = flagLogLevel
	if flagClasses > 0 {
		overCLI.Width.Classes = flagClasses
	}
	if set["min-width"] {
		overCLI.Width.MinWidth = &flagMinWidth
	}
	if set["max-width"] {
		overCLI.Width.MaxWidth = &flagMaxWidth
	}
	if flagConcurrency > 0 {
		overCLI.Concurrency = flagConcurrency
	}
	if len(roots) > 0 {
		overCLI.Inputs = roots
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("cli", string(diag.Classify(err)), "config invalid", &start)
		return exitConfig
	}

	_ = logger.Close()
	logger = diag.NewLogger(corrID, cfg.Logging.Level)

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "preflight failed", &start)
		return exitConfig
	}

	comp, runSet, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "assemble failed", &start)
		return exitConfig
	}
	defer releaseSink(comp.Sink, logger)

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", diag.Ref{}, map[string]string{
		"inputs_count": strconv.Itoa(len(cfg.Inputs)),
		"concurrency":  strconv.Itoa(cfg.Concurrency),
		"width_mode":   runSet.WidthMode,
		"classes":      strconv.Itoa(runSet.Width.Classes),
		"min_width":    strconv.FormatFloat(runSet.Width.MinWidth, 'g', -1, 64),
		"max_width":    strconv.FormatFloat(runSet.Width.MaxWidth, 'g', -1, 64),
		"rounding":     string(runSet.Width.Rounding),
		"cap_style":    string(runSet.Cap),
		"crs":          cfg.CRS,
		"reader":       cfg.Components.Reader,
		"decoder":      cfg.Components.Decoder,
		"sink":         cfg.Components.Sink,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	rep, err := pipelineRun(ctx, comp, runSet, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, err.Error(), &start)
		diag.IncOp("pipeline", "error", "error")
		diag.IncError("pipeline", code)
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		// 数据相关的配置错误（例如主属性区间为 0）同样按配置失败退出
		if errors.Is(err, contract.ErrConfiguration) {
			return exitConfig
		}
		return exitRuntime
	}
	t.Finish("run", rep.Segments)
	if rep.Failures() > 0 {
		logger.Warn("pipeline", "partial", fmt.Sprintf("skipped: datasets=%d tracks=%d polygons=%d writes=%d",
			rep.SkippedDatasets, rep.DegenerateTracks, rep.GeometryFailures, rep.WriteFailures))
	}
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	return exitOK
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用当前目录 "."。
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板（已存在则跳过）。
func writeDotEnv(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(cfgpkg.TemplateEnv())
	return err
}

// fileSinks 为写入本地目录的 Sink 名称。
var fileSinks = map[string]bool{"geojson": true, "csv": true, "svg": true}

// preflightCheckOutputDir: 文件类 Sink 启动前检查输出目录可写性。
// - 目录已存在：尝试创建并删除临时文件；
// - 目录不存在：检查父目录可写（创建并删除临时目录）。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := strings.TrimSpace(cfg.Components.Sink)
	if name == "" {
		name = cfgpkg.Defaults().Components.Sink
	}
	if !fileSinks[name] {
		return nil
	}
	var opts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Sink) > 0 {
		_ = json.Unmarshal(cfg.Options.Sink, &opts)
	}
	dir := strings.TrimSpace(opts.OutputDir)
	if dir == "" {
		// 未指定时交由装配阶段报错
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(dir)
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmpd)
}

// releaseSink 释放持有外部资源的 Sink（例如 pg 连接池）；关闭失败只告警。
func releaseSink(s contract.Sink, logger *diag.Logger) {
	c, ok := s.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("sink", string(diag.Classify(err)), "close: "+err.Error())
	}
}

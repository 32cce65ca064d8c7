package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"ribbonify/internal/diag"
	"ribbonify/internal/geometry"
	"ribbonify/internal/ribbon"
	"ribbonify/internal/segment"
	"ribbonify/internal/width"
	"ribbonify/pkg/contract"
)

// - 单点并发：仅此层管理并发；宽度映射、几何与装配均为同步实现。
// - 顺序门闩：并发模式下按轨迹分片构造，结果按原始轨迹顺序提交给 Sink。
// - 错误域：配置/排序/读取错误中止运行；退化轨迹、单个多边形与单条写出失败记录后继续。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader  contract.Reader
	Decoder contract.Decoder
	Sink    contract.Sink
}

// NewWidth 按数据集汇总构造宽度映射。
type NewWidth func(s width.Summary, p width.Params) (contract.WidthMapper, error)

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs    []string
	Fields    contract.Fields
	WidthMode string
	Width     width.Params
	NewWidth  NewWidth
	Cap       contract.CapStyle
	Projector contract.Projector
	// Concurrency: 1 为顺序执行；>1 时按轨迹分片并发构造。
	Concurrency int
}

// Report 汇总一次运行的结果。
type Report struct {
	Datasets         int
	SkippedDatasets  int
	Tracks           int
	DegenerateTracks int
	Segments         int64
	GeometryFailures int
	WriteFailures    int
}

// Failures 返回被跳过或失败的条目总数。
func (r Report) Failures() int {
	return r.SkippedDatasets + r.DegenerateTracks + r.GeometryFailures + r.WriteFailures
}

// Run 执行完整流水线：Reader → Decoder → 汇总 → 宽度映射 → 分段 → 装配 → Sink。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Report, error) {
	var rep Report
	if err := sanity(comp, &set); err != nil {
		return rep, fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.Nop()
	}
	runStart := time.Now()
	ok := false
	if t := diag.GetTerminal(); t != nil {
		t.RunStart(set.Concurrency, fmt.Sprintf("%T", comp.Sink))
		defer func() { t.RunFinish(ok, time.Since(runStart)) }()
	}

	rtimer := logger.Start("reader", "iterate")
	err := comp.Reader.Iterate(ctx, set.Inputs, func(id contract.DatasetID, rc io.ReadCloser) error {
		defer rc.Close()
		ds := &dataset{id: id, comp: comp, set: set, log: logger, rep: &rep}
		return ds.run(ctx, rc)
	})
	if err != nil {
		code := diag.Classify(err)
		logger.Error("reader", string(code), "iterate failed: "+err.Error(), &runStart)
		diag.IncOp("reader", "error", "error")
		diag.IncError("reader", string(code))
		return rep, err
	}
	rtimer.Finish("iterate", int64(rep.Datasets))
	diag.IncOp("reader", "finish", "success")
	ok = true
	return rep, nil
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Decoder == nil || c.Sink == nil {
		return fmt.Errorf("%w: pipeline: missing components", contract.ErrConfiguration)
	}
	if s.NewWidth == nil || s.Projector == nil {
		return fmt.Errorf("%w: pipeline: missing width mapper or projector", contract.ErrConfiguration)
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("%w: pipeline: empty inputs", contract.ErrConfiguration)
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	return nil
}

// dataset 承载单个数据集的处理状态。
type dataset struct {
	id   contract.DatasetID
	comp Components
	set  Settings
	log  *diag.Logger
	rep  *Report

	w     contract.SegmentWriter
	done  int
	warns int
	total int
}

func (d *dataset) ref() diag.Ref { return diag.Ref{Dataset: string(d.id)} }

func (d *dataset) fail(comp string, err error) error {
	code := diag.Classify(err)
	d.log.ErrorWith(comp, string(code), err.Error(), nil, d.ref())
	diag.IncOp(comp, "error", "error")
	diag.IncError(comp, string(code))
	return fmt.Errorf("%s %s: %w", comp, d.id, err)
}

func (d *dataset) run(ctx context.Context, rc io.Reader) (err error) {
	dtimer := d.log.StartWith("decoder", "decode", d.ref())
	points, err := d.comp.Decoder.Decode(ctx, d.id, rc, d.set.Fields)
	switch {
	case errors.Is(err, contract.ErrEmptyDataset):
		d.rep.SkippedDatasets++
		d.log.WarnWith("decoder", string(diag.CodeDegenerate), "empty dataset skipped", d.ref())
		diag.IncOp("decoder", "finish", "skipped")
		return nil
	case err != nil:
		return d.fail("decoder", err)
	case points == nil:
		// 非本解码器负责的输入
		d.log.DebugStart("decoder", "not applicable, skipped", d.ref(), nil)
		return nil
	}
	dtimer.Finish("decode", int64(len(points)))
	diag.IncOp("decoder", "finish", "success")

	// 汇总预扫描：在任何构造之前确定取值区间
	sum, err := width.Summarize(points)
	if err != nil {
		return d.fail("width", err)
	}
	mapper, err := d.set.NewWidth(sum, d.set.Width)
	if err != nil {
		return d.fail("width", err)
	}
	d.logClasses(sum, mapper)

	asm, err := ribbon.New(mapper, d.set.Projector, d.set.Cap)
	if err != nil {
		return d.fail("ribbon", err)
	}
	tracks, err := segment.Split(points)
	if err != nil {
		return d.fail("segment", err)
	}
	d.total = len(tracks)
	d.rep.Datasets++

	w, err := d.comp.Sink.Open(ctx, contract.ArtifactID(d.id))
	if err != nil {
		return d.fail("sink", err)
	}
	d.w = w

	if t := diag.GetTerminal(); t != nil {
		t.DatasetStart(string(d.id), len(tracks))
	}
	start := time.Now()
	before := d.rep.Segments
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.DatasetFinish(err == nil, d.rep.Segments-before, time.Since(start))
		}
	}()

	atimer := d.log.StartWithKV("ribbon", "assemble", d.ref(), map[string]string{
		"tracks":      strconv.Itoa(len(tracks)),
		"concurrency": strconv.Itoa(d.set.Concurrency),
		"cap":         string(d.set.Cap),
	})
	if d.set.Concurrency > 1 && len(tracks) > 1 {
		err = d.assembleSharded(ctx, asm, tracks)
	} else {
		err = d.assembleSequential(ctx, asm, tracks)
	}
	if err != nil {
		if a, ok := w.(contract.Aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return d.fail("ribbon", err)
	}
	atimer.Finish("assemble", d.rep.Segments-before)

	if cerr := w.Close(); cerr != nil {
		return d.fail("sink", cerr)
	}
	diag.IncOp("sink", "finish", "success")
	return nil
}

// logClasses 在 debug 级别输出分级表（每个断点一条）。
func (d *dataset) logClasses(sum width.Summary, m contract.WidthMapper) {
	if !d.log.Enabled(diag.Debug) {
		return
	}
	kv := map[string]string{
		"mode":  d.set.WidthMode,
		"min":   strconv.FormatFloat(sum.Min, 'g', -1, 64),
		"max":   strconv.FormatFloat(sum.Max, 'g', -1, 64),
		"count": strconv.Itoa(sum.Count),
	}
	d.log.DebugStart("width", "summary", d.ref(), kv)
	st, ok := m.(*width.Stepped)
	if !ok {
		return
	}
	for _, c := range st.Classes() {
		d.log.DebugStart("width", "class", d.ref(), map[string]string{
			"class": strconv.Itoa(c.Index),
			"upper": strconv.FormatFloat(c.Upper, 'g', -1, 64),
			"width": strconv.FormatFloat(c.Width, 'g', -1, 64),
		})
	}
}

// deliver 处理单个多边形结果：几何失败记录后继续；写出失败记录后继续；取消上抛。
func (d *dataset) deliver(ctx context.Context, seg contract.Segment, err error) error {
	if err != nil {
		if !geometry.IsGeometry(err) {
			return err
		}
		d.rep.GeometryFailures++
		d.warns++
		d.warn("ribbon", err, seg.Group)
		return nil
	}
	if werr := d.w.Append(ctx, seg); werr != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		d.rep.WriteFailures++
		d.warns++
		d.warn("sink", &contract.PointError{PointID: seg.PointID, Group: seg.Group, Err: werr}, seg.Group)
		return nil
	}
	d.rep.Segments++
	diag.IncOp("ribbon", "segment", "success")
	return nil
}

// finish 处理轨迹级结果：退化轨迹跳过并告警。
func (d *dataset) finish(st ribbon.Stats, err error) error {
	d.rep.Tracks++
	d.done++
	if err != nil {
		if !errors.Is(err, contract.ErrDegenerateGroup) {
			return err
		}
		d.rep.DegenerateTracks++
		d.warns++
		d.warn("segment", err, st.Group)
	}
	if t := diag.GetTerminal(); t != nil {
		t.DatasetProgress(d.done, d.total, d.warns)
	}
	return nil
}

func (d *dataset) warn(comp string, err error, group contract.GroupKey) {
	code := diag.Classify(err)
	ref := diag.Ref{Dataset: string(d.id), Group: string(group)}
	var pe *contract.PointError
	if errors.As(err, &pe) {
		ref = diag.At(string(d.id), string(pe.Group), pe.PointID)
	}
	d.log.WarnWith(comp, string(code), err.Error(), ref)
	diag.IncOp(comp, "warn", "skipped")
	diag.IncError(comp, string(code))
}

func (d *dataset) assembleSequential(ctx context.Context, asm *ribbon.Assembler, tracks []segment.Track) error {
	for _, t := range tracks {
		st, err := asm.Build(ctx, t, func(seg contract.Segment, err error) error {
			return d.deliver(ctx, seg, err)
		})
		if err := d.finish(st, err); err != nil {
			return err
		}
	}
	return nil
}

type item struct {
	seg contract.Segment
	err error
}

type shard struct {
	items []item
	stats ribbon.Stats
	err   error
	done  chan struct{}
}

// assembleSharded 按轨迹并发构造；提交端按轨迹原始顺序等待并冲刷，
// 因此输出顺序与顺序模式一致。
func (d *dataset) assembleSharded(ctx context.Context, asm *ribbon.Assembler, tracks []segment.Track) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shards := make([]*shard, len(tracks))
	for i := range shards {
		shards[i] = &shard{done: make(chan struct{})}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.set.Concurrency)
	go func() {
		for i, t := range tracks {
			sh := shards[i]
			g.Go(func() error {
				defer close(sh.done)
				sh.stats, sh.err = asm.Build(gctx, t, func(seg contract.Segment, err error) error {
					sh.items = append(sh.items, item{seg: seg, err: err})
					return nil
				})
				if sh.err != nil && !errors.Is(sh.err, contract.ErrDegenerateGroup) {
					return sh.err
				}
				return nil
			})
		}
	}()

	// 顺序门闩：逐个等待并冲刷；出错后取消剩余分片但仍排空，保证 g.Wait 不早于全部 Go 调用
	var firstErr error
	for _, sh := range shards {
		<-sh.done
		if firstErr != nil {
			continue
		}
		for _, it := range sh.items {
			if err := d.deliver(ctx, it.seg, it.err); err != nil {
				firstErr = err
				break
			}
		}
		if firstErr == nil {
			firstErr = d.finish(sh.stats, sh.err)
		}
		if firstErr != nil {
			cancel()
		}
	}
	if err := g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

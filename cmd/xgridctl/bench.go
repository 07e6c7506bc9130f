package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xgrid/pkg/observability/xmetrics"
	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
	"github.com/omeyang/xgrid/pkg/serialization/xentry"
	"github.com/omeyang/xgrid/pkg/storage/xcache"
	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
	"github.com/omeyang/xgrid/pkg/storage/xoffheap"
	"github.com/omeyang/xgrid/pkg/storage/xstore"
)

// 支持的压测后端。
const (
	backendOffheap = "offheap"
	backendMemory  = "memory"
	backendRedis   = "redis"
)

const maxWorkers = 1024

// record 是压测写入的值类型。
type record struct {
	ID      int64     `msgpack:"id"`
	Payload []byte    `msgpack:"payload"`
	At      time.Time `msgpack:"at"`
}

// newCodec 返回注册了 record 的类型注册表及条目编解码器。
func newCodec() (*xcodec.Codec, *xentry.Serializer, error) {
	c := xcodec.New()
	if _, err := xcodec.RegisterStruct[record](c); err != nil {
		return nil, nil, err
	}
	s, err := xentry.NewSerializer(c)
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}

type benchOptions struct {
	entries   int
	workers   int
	valueSize int
	backend   string
	redisAddr string
	metrics   bool
}

func (o benchOptions) validate() error {
	switch {
	case o.entries <= 0:
		return usagef("--entries must be positive, got %d", o.entries)
	case o.workers <= 0 || o.workers > maxWorkers:
		return usagef("--workers must be in [1, %d], got %d", maxWorkers, o.workers)
	case o.valueSize < 0:
		return usagef("--value-size must not be negative, got %d", o.valueSize)
	}
	switch o.backend {
	case backendOffheap, backendMemory, backendRedis:
		return nil
	default:
		return usagef("unknown backend %q", o.backend)
	}
}

func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "并发写入 N 条记录后逐条读取，输出吞吐与用量",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "entries", Aliases: []string{"n"}, Usage: "记录数", Value: 10000},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "并发数", Value: 4},
			&cli.IntFlag{Name: "value-size", Usage: "每条记录的负载字节数", Value: 128},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "缓存配置文件"},
			&cli.StringFlag{Name: "section", Usage: "配置所在的键路径", Value: "cache"},
			&cli.StringFlag{Name: "backend", Usage: "存储后端 (offheap/memory/redis)", Value: backendOffheap},
			&cli.StringFlag{Name: "redis-addr", Usage: "redis 后端地址", Value: "127.0.0.1:6379"},
			&cli.BoolFlag{Name: "metrics", Usage: "结束时输出 OpenTelemetry 指标"},
		},
		Action: cmdBench,
	}
}

func cmdBench(ctx context.Context, cmd *cli.Command) (err error) {
	o := benchOptions{
		entries:   cmd.Int("entries"),
		workers:   cmd.Int("workers"),
		valueSize: cmd.Int("value-size"),
		backend:   cmd.String("backend"),
		redisAddr: cmd.String("redis-addr"),
		metrics:   cmd.Bool("metrics"),
	}
	if err := o.validate(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.String("file"), cmd.String("section"))
	if err != nil {
		return err
	}
	logger, cleanup, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, cleanup()) }()

	codec, _, err := newCodec()
	if err != nil {
		return err
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { err = errors.Join(err, mp.Shutdown(context.Background())) }()
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	if err != nil {
		return err
	}

	c, acc, err := openCache(ctx, cfg, o, logger, obs,
		xcache.WithCodec(codec),
		xcache.WithLogger(logger),
		xcache.WithObserver(obs),
		xcache.WithName("bench"),
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, c.Destroy()) }()

	reg, err := xcapacity.RegisterGauges(mp.Meter("xgridctl"), acc, attribute.String("backend", o.backend))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, reg.Unregister()) }()

	logger.Info("bench started", "backend", o.backend, "entries", o.entries, "workers", o.workers)
	res, err := runBench(ctx, c, o)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	res.print(w)
	fmt.Fprintf(w, "usage:    %d bytes, %d items\n", acc.MemoryUsed(), acc.ItemCount())
	if st, err := c.Stats(); err == nil {
		fmt.Fprintf(w, "stats:    hit_rate=%.3f loads=%d load_penalty=%s\n",
			st.HitRate(), st.LoadCount(), st.AverageLoadPenalty())
	}
	if s, ok := c.Store().(*xoffheap.Store); ok {
		st := s.Stats()
		fmt.Fprintf(w, "offheap:  mapped=%d chunks=%d dedicated=%d evictions=%d\n",
			st.MappedBytes, st.Chunks, st.Dedicated, st.Evictions)
	}
	if o.metrics {
		return printMetrics(ctx, w, reader)
	}
	return nil
}

// openCache 按后端组装缓存。offheap 后端完全由配置驱动，
// 其它后端复用配置中的容量、TTL 与加载选项。
func openCache(ctx context.Context, cfg xcache.Config, o benchOptions, logger *slog.Logger,
	obs xmetrics.Observer, opts ...xcache.Option) (*xcache.Cache[int64, record], *xcapacity.Accountant, error) {
	if o.backend == backendOffheap {
		return xcache.NewFromConfig[int64, record](cfg, opts...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, &usageError{err: err}
	}
	mode, _ := xcache.ParseSingleFlight(cfg.SingleFlight)
	base := []xcache.Option{
		xcache.WithTTL(cfg.TTL),
		xcache.WithStats(cfg.Stats),
		xcache.WithSingleFlight(mode),
	}

	acc := xcapacity.New(cfg.Restriction(), xcapacity.WithLogger(logger))
	var store xstore.Store
	switch o.backend {
	case backendMemory:
		m, err := xstore.NewMemory(acc)
		if err != nil {
			return nil, nil, err
		}
		store = m
	case backendRedis:
		client := redis.NewClient(&redis.Options{Addr: o.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("redis ping %s: %w", o.redisAddr, err), client.Close())
		}
		r, err := xstore.NewRedis(client, acc,
			xstore.WithKeyPrefix("xgridctl:bench:"),
			xstore.WithOwnedClient(true),
			xstore.WithCircuitBreaker(),
			xstore.WithRedisLogger(logger),
			xstore.WithRedisObserver(obs),
		)
		if err != nil {
			return nil, nil, errors.Join(err, client.Close())
		}
		store = r
	}

	c, err := xcache.New[int64, record](store, append(base, opts...)...)
	if err != nil {
		return nil, nil, errors.Join(err, store.Destroy())
	}
	return c, acc, nil
}

// =============================================================================
// 压测主体
// =============================================================================

type benchResult struct {
	entries  int
	putTime  time.Duration
	getTime  time.Duration
	rejected int64
	hits     int64
	loaded   int64
}

func (r benchResult) print(w io.Writer) {
	fmt.Fprintf(w, "put:      %d entries in %s (%.0f ops/s), rejected=%d\n",
		r.entries, r.putTime.Round(time.Microsecond), rate(r.entries, r.putTime), r.rejected)
	fmt.Fprintf(w, "get:      %d entries in %s (%.0f ops/s), hits=%d loaded=%d\n",
		r.entries, r.getTime.Round(time.Microsecond), rate(r.entries, r.getTime), r.hits, r.loaded)
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// runBench 先并发写入 [0, entries)，再用 Get 逐条读取；
// 因容量或淘汰缺失的记录由加载函数补回。
func runBench(ctx context.Context, c *xcache.Cache[int64, record], o benchOptions) (benchResult, error) {
	res := benchResult{entries: o.entries}
	payload := make([]byte, o.valueSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	var rejected, loaded atomic.Int64
	forEach := func(fn func(ctx context.Context, id int64) error) (time.Duration, error) {
		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		for w := range o.workers {
			g.Go(func() error {
				for id := int64(w); id < int64(o.entries); id += int64(o.workers) {
					if err := fn(gctx, id); err != nil {
						return err
					}
				}
				return nil
			})
		}
		err := g.Wait()
		return time.Since(start), err
	}

	var err error
	res.putTime, err = forEach(func(ctx context.Context, id int64) error {
		err := c.Put(ctx, id, record{ID: id, Payload: payload, At: time.Now()})
		if isRejected(err) {
			rejected.Add(1)
			return nil
		}
		return err
	})
	if err != nil {
		return res, fmt.Errorf("put phase: %w", err)
	}

	res.getTime, err = forEach(func(ctx context.Context, id int64) error {
		loader := xcache.LoaderFunc[record](func(context.Context) (record, error) {
			loaded.Add(1)
			return record{ID: id, Payload: payload, At: time.Now()}, nil
		})
		v, err := c.Get(ctx, id, loader)
		switch {
		case isRejected(err):
			return nil
		case err != nil:
			return err
		case v.ID != id:
			return fmt.Errorf("key %d returned record %d", id, v.ID)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("get phase: %w", err)
	}

	res.rejected = rejected.Load()
	res.loaded = loaded.Load()
	res.hits = int64(o.entries) - res.loaded
	return res, nil
}

// isRejected 报告写入是否因容量上限或准入策略被拒绝。
func isRejected(err error) bool {
	return errors.Is(err, xcapacity.ErrCapacityExceeded) || errors.Is(err, xstore.ErrRejected)
}

// printMetrics 收集一次指标并按名称输出聚合值。
func printMetrics(ctx context.Context, w io.Writer, reader sdkmetric.Reader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	lines := make(map[string]string)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				lines[m.Name] = fmt.Sprint(total)
			case metricdata.Gauge[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				lines[m.Name] = fmt.Sprint(total)
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				lines[m.Name] = fmt.Sprintf("count=%d sum=%.6f", count, sum)
			}
		}
	}
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "metric:   %s %s\n", name, lines[name])
	}
	return nil
}

// Package xcron 是进程内的定时任务调度器，基于 github.com/robfig/cron/v3。
//
// 相对直接使用 cron.Cron，xcron 为每个任务增加：
//
//   - 上一次执行未结束时跳过本次触发，并计数
//   - panic 恢复，带堆栈记录日志
//   - 任务返回的错误写入日志并计数
//   - Stop 取消任务的 ctx，并等待执行中的任务结束
//
// 堆外存储用它周期性清理过期记录：
//
//	sched := xcron.New(xcron.WithLogger(logger))
//	_, err := sched.AddFunc("@every 30s", "cleanup", func(ctx context.Context) error {
//		return store.CleanUp(ctx)
//	})
//	sched.Start()
//	defer sched.Stop(context.Background())
//
// 调度只在本进程内生效，多副本之间不做互斥。
package xcron

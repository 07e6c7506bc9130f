// xgridctl 是 xgrid 缓存核心的命令行工具。
//
// 用法:
//
//	xgridctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	--log-level    日志级别 debug/info/warn/error (默认: info)
//	--log-format   日志格式 text/json (默认: text)
//	--log-file     日志文件，设置后按大小轮转
//
// 命令:
//
//	config         加载并校验缓存配置，输出生效值
//	codec types    列出类型注册表
//	codec encode   编码一条条目并输出十六进制
//	bench          对缓存执行写入与读取压测
//
// 退出码:
//
//	0: 成功
//	1: 执行失败
//	2: 参数或配置错误
//
// 示例:
//
//	xgridctl config --file cache.yaml
//	xgridctl codec encode --key user:1 --value hello --version 3
//	xgridctl bench --entries 100000 --workers 8 --file cache.yaml
//	xgridctl bench --backend redis --redis-addr 127.0.0.1:6379
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，可通过 -ldflags 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// createApp 创建 CLI 应用。输出写入 stdout，错误提示写入 stderr。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xgridctl",
		Usage:     "xgrid 缓存核心命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "日志级别 (debug/info/warn/error)", Value: "info"},
			&cli.StringFlag{Name: "log-format", Usage: "日志格式 (text/json)", Value: "text"},
			&cli.StringFlag{Name: "log-file", Usage: "日志文件，设置后按大小轮转"},
		},
		Commands: []*cli.Command{
			createConfigCommand(),
			createCodecCommand(),
			createBenchCommand(),
		},
		// 设计决策: 由 run 统一映射退出码，禁止 urfave/cli 直接 os.Exit。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := setupSignalHandler(cancel)
	defer stop()

	if err := createApp(stdout, stderr).Run(ctx, args); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usage)
			return 2
		}
		if _, ok := err.(cli.ExitCoder); ok {
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

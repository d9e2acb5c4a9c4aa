package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yqhp/session-engine/internal/parser"
	"yqhp/session-engine/internal/runner"
	"yqhp/session-engine/internal/steps"
)

var (
	// run 命令的 flags
	runVars       []string
	runJSONOutput string
)

// runCmd 是 run 子命令
var runCmd = &cobra.Command{
	Use:   "run <benchmark.yaml>",
	Short: "独立模式执行压测",
	Long: `在独立模式下执行压测文件，按顺序驱动所有阶段，
结束后在终端打印汇总报告。`,
	Example: `  # 基本执行
  session-engine run benchmark.yaml

  # 注入变量
  session-engine run --var base_url=http://localhost:8080 benchmark.yaml

  # 输出 JSON 报告到文件
  session-engine run --out-json report.json benchmark.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// run 命令的 flags
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "变量注入 (可多次指定)，格式: name=value")
	runCmd.Flags().StringVar(&runJSONOutput, "out-json", "", "输出 JSON 报告到文件")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	benchmarkPath := args[0]

	variables := make(map[string]any, len(runVars))
	for _, v := range runVars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("无效的变量定义 %q，应为 name=value", v)
		}
		variables[parts[0]] = parts[1]
	}

	// 解析压测文件
	p := parser.NewBenchmarkParser().
		WithResolver(parser.NewVariableResolver().WithVariables(variables))
	benchmark, err := p.ParseFile(benchmarkPath)
	if err != nil {
		return fmt.Errorf("解析压测文件失败: %w", err)
	}

	r := runner.New(steps.NewRegistry())
	run, err := r.StartRun(benchmark)
	if err != nil {
		return err
	}

	// 捕获中断信号，请求协作式停止
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		run.Stop()
	}()

	runErr := run.Wait()
	report := run.Report()
	printReport(cmd, report)

	if runJSONOutput != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(runJSONOutput, data, 0o644); err != nil {
			return fmt.Errorf("写入报告失败: %w", err)
		}
	}

	return runErr
}

func printReport(cmd *cobra.Command, report runner.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nbenchmark: %s (%s)\n", report.Benchmark, report.Status)
	fmt.Fprintf(out, "duration:  %s\n", report.Duration.Round(time.Millisecond))
	for _, ph := range report.Phases {
		fmt.Fprintf(out, "  phase %-20s %8s  %d sessions finished", ph.Name,
			ph.Duration.Round(time.Millisecond), ph.FinishedSessions)
		if ph.Error != "" {
			fmt.Fprintf(out, "  ERROR: %s", ph.Error)
		}
		fmt.Fprintln(out)
	}
	for _, m := range report.Metrics {
		fmt.Fprintf(out, "  metric %s/%s: requests=%d responses=%d errors=%d",
			m.Phase, m.Name, m.Totals.RequestCount, m.Totals.ResponseCount, m.Totals.ConnectionErrors)
		if m.Totals.ResponseCount > 0 {
			fmt.Fprintf(out, " p50=%s p90=%s p99=%s max=%s",
				m.Totals.P50Latency.Round(time.Microsecond),
				m.Totals.P90Latency.Round(time.Microsecond),
				m.Totals.P99Latency.Round(time.Microsecond),
				m.Totals.MaxLatency.Round(time.Microsecond))
		}
		fmt.Fprintln(out)
	}
}

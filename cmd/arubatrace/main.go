// arubatrace 命令行：在 HP Aruba 交换机上追踪 MAC、查询权限与 LLDP 邻居。
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sshcollectorpro/arubatrace/internal/config"
	"github.com/sshcollectorpro/arubatrace/internal/service"
	"github.com/sshcollectorpro/arubatrace/pkg/logger"
)

// rootFlags 全局参数
type rootFlags struct {
	configPath string
	output     string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "arubatrace",
		Short:         "Trace MAC addresses across HP Aruba switches",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if flags.output != "json" && flags.output != "yaml" {
				return fmt.Errorf("unsupported output format %q (json|yaml)", flags.output)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default ./configs/config.yaml)")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "json", "output format: json|yaml")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(newTraceCmd(flags))
	cmd.AddCommand(newPrivilegeCmd(flags))
	cmd.AddCommand(newNeighborsCmd(flags))
	cmd.AddCommand(newNormalizeCmd(flags))
	cmd.AddCommand(newProxyConfigCmd(flags))
	cmd.AddCommand(newSimulateCmd(flags))
	return cmd
}

// loadConfig 加载配置并初始化日志；CLI 日志只写 stderr，避免污染结构化输出
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	logCfg := cfg.LoggerConfig()
	if f.logLevel != "" {
		logCfg.Level = f.logLevel
	}
	switch logCfg.Output {
	case "console", "":
		logCfg.Output = "stderr"
	case "both":
		logCfg.Output = "file"
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newService 加载并校验配置后创建 TraceService
func (f *rootFlags) newService() (*service.TraceService, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return service.NewTraceService(cfg)
}

func (f *rootFlags) print(w io.Writer, v interface{}) error {
	if f.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/monitor"
)

var sysmonOutputFilename string

// sysmonPlotCmd plots a metric from a binary system-monitor log.
var sysmonPlotCmd = &cobra.Command{
	Use:   "sysmon-plot <log_file> <cpu|mem|disk> <time_range>",
	Short: "Plot a metric from a system-monitor log",
	Long: `Decode a binary system-monitor log, filter one metric down to a time
range and plot it with gnuplot. The time range is either relative
("last N hours|days|weeks|months") or absolute
("YYYY/MM/DD[THH:MM:SS][-YYYY/MM/DD[THH:MM:SS]]").`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSysmonPlot(args[0], args[1], args[2], sysmonOutputFilename)
	},
}

func runSysmonPlot(logPath, metricName, timeRange, outputPath string) error {
	metric, err := monitor.ParseMetric(metricName)
	if err != nil {
		return err
	}

	start, end, err := monitor.ParseTimeRange(timeRange, time.Now())
	if err != nil {
		return err
	}

	points, err := monitor.ReadLogFile(logPath)
	if err != nil {
		return err
	}

	filtered := monitor.Filter(points, metric, start, end)
	logger.Info("decoded monitor log",
		zap.Int("datapoints", len(points)),
		zap.Int("in_range", len(filtered)),
		zap.String("metric", metric.String()))

	if outputPath == "" {
		outputPath = metricName + ".png"
	}
	return monitor.Plot(filtered, metric, outputPath)
}

func init() {
	sysmonPlotCmd.Flags().StringVar(&sysmonOutputFilename, "output-filename", "", "Path of the generated PNG (default <metric>.png)")
	rootCmd.AddCommand(sysmonPlotCmd)
}

package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ubtk/marctk/pkg/executil"
)

// gnuplotTimeout bounds a single plotting run; gnuplot hanging on a bad
// terminal setting would otherwise stall the whole batch.
const gnuplotTimeout = 30 * time.Second

// Plot renders the datapoints into a PNG at outputPath by generating a data
// file and driving gnuplot.
func Plot(points []Datapoint, metric Metric, outputPath string) error {
	if len(points) == 0 {
		return fmt.Errorf("no datapoints to plot")
	}

	workDir, err := os.MkdirTemp("", "marctk-plot-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	dataPath := filepath.Join(workDir, "plot.dat")
	dataFile, err := os.Create(dataPath)
	if err != nil {
		return err
	}
	for _, dp := range points {
		if _, err := fmt.Fprintf(dataFile, "%s %g\n", dp.Timestamp.Format("2006-01-02T15:04:05"), dp.Value); err != nil {
			dataFile.Close()
			return err
		}
	}
	if err := dataFile.Close(); err != nil {
		return err
	}

	script := fmt.Sprintf(`set terminal png size 1200,600
set output %q
set xdata time
set timefmt "%%Y-%%m-%%dT%%H:%%M:%%S"
set format x "%%m/%%d %%H:%%M"
set title %q
plot %q using 1:2 with lines title %q
`, outputPath, metric.String(), dataPath, metric.String())

	scriptPath := filepath.Join(workDir, "plot.gp")
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return err
	}

	if err := executil.Run(gnuplotTimeout, "gnuplot", scriptPath); err != nil {
		return fmt.Errorf("plotting %s: %w", metric, err)
	}
	return nil
}

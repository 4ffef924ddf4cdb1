package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iti/ccnpoison"
	"github.com/iti/ccnpoison/ccnsim"
	"gopkg.in/yaml.v3"
)

// printReport writes the sweep table, then the histogram and stopping time
// distribution of every point that has them
func printReport(out io.Writer, res *ccnpoison.Results) {
	param := res.SweepParam
	if param == "" {
		param = "point"
	}
	fmt.Fprintf(out, "experiment %s\n\n", res.ExpName)

	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\ttrials\tdelivered\tgood\tbad\tbad%%\tbad/s\tinjected/s\thit%%\tstopped\t\n", param)
	for _, row := range res.Sweep {
		fmt.Fprintf(tw, "%g\t%d/%d\t%.3f\t%.3f\t%.3f\t%s\t%.4f\t%.3f\t%s\t%.3f\t\n",
			row.Value, row.Effective, row.Configured, row.Delivered, row.Good, row.Bad,
			row.BadPct, row.BadPerSecond, row.Injected, row.HitPct, row.Stopped)
	}
	tw.Flush()

	for _, point := range res.Points {
		if point == nil {
			continue
		}
		printPoint(out, point)
	}
}

func printPoint(out io.Writer, point *ccnpoison.PointResult) {
	switch {
	case point.Invalid:
		fmt.Fprintf(out, "\n%s (not run)\n", point.Label)
		for _, failure := range point.Failures {
			fmt.Fprintf(out, "  invalid: %s\n", failure)
		}
		return
	case point.Partial:
		fmt.Fprintf(out, "\n%s (cut short after %d trials)\n", point.Label, point.EffectiveTrials)
	default:
		fmt.Fprintf(out, "\n%s\n", point.Label)
	}
	for _, failure := range point.Failures {
		fmt.Fprintf(out, "  excluded: %s\n", failure)
	}

	if len(point.Histogram) > 0 {
		tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "start\tend\tdelivered\tgood\tbad\tbad%\t")
		for _, row := range ccnpoison.ReduceHistogram(point.Histogram) {
			fmt.Fprintf(tw, "%g\t%g\t%.3f\t%.3f\t%.3f\t%s\t\n",
				row.Start, row.End, row.Delivered, row.Good, row.Bad, row.BadPct)
		}
		tw.Flush()
	}

	report := ccnpoison.ReduceDistribution(point.Distribution)
	if !report.Defined {
		return
	}
	fmt.Fprintf(out, "stopping time over %d consumers: mean %.4fs median %.4fs p90 %.4fs, stopped in %.1f%% of tracked trials\n",
		report.Slots, report.Mean, report.Median, report.P90, 100.0*report.StopFraction)
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "seconds\tcdf\t")
	for _, pt := range report.CDF {
		fmt.Fprintf(tw, "%.4f\t%.3f\t\n", pt.Value, pt.Fraction)
	}
	tw.Flush()
}

func printTopologies(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "name\tconsumers\trouters\tproducer\tcaching routers\t")
	for _, name := range ccnsim.NamedTopologies() {
		td, err := ccnsim.NamedTopology(name)
		if err != nil {
			return err
		}
		producer := "none"
		if td.ProducerRouter >= 0 {
			producer = fmt.Sprintf("router %d", td.ProducerRouter)
		}
		caching := "all"
		if len(td.CacheRouters) > 0 {
			caching = fmt.Sprintf("%d", len(td.CacheRouters))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t\n", name, td.Consumers, td.Routers, producer, caching)
	}
	return tw.Flush()
}

func writeYAML(out io.Writer, obj any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(obj); err != nil {
		return err
	}
	return enc.Close()
}

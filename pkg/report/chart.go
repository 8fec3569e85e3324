package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

const (
	topRulesLimit = 40
	xAxisRotate   = 60
	chartWidth    = "1200px"
	chartHeight   = "600px"
	hitsColor     = "#5470c6"
)

// UsageChart writes an HTML page with two bar charts: the hits of the
// busiest rules and the total hits of every module.
func UsageChart(w io.Writer, title string, usage []rules.Usage) error {
	page := components.NewPage()
	page.PageTitle = title

	page.AddCharts(
		topRulesChart(usage),
		moduleChart(usage),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render usage chart: %w", err)
	}

	return nil
}

func topRulesChart(usage []rules.Usage) *charts.Bar {
	sorted := slices.Clone(usage)
	slices.SortStableFunc(sorted, func(a, b rules.Usage) int { return cmp.Compare(b.Hits, a.Hits) })

	if len(sorted) > topRulesLimit {
		sorted = sorted[:topRulesLimit]
	}

	labels := make([]string, len(sorted))
	data := make([]opts.BarData, len(sorted))

	for i, u := range sorted {
		labels[i] = u.Module + " " + u.Rule
		data[i] = opts.BarData{Value: u.Hits}
	}

	return barChart("Busiest rules", fmt.Sprintf("%d of %d rules", len(sorted), len(usage)), labels, data)
}

func moduleChart(usage []rules.Usage) *charts.Bar {
	totals := map[string]int{}

	var modules []string

	for _, u := range usage {
		if _, ok := totals[u.Module]; !ok {
			modules = append(modules, u.Module)
		}

		totals[u.Module] += u.Hits
	}

	data := make([]opts.BarData, len(modules))
	for i, m := range modules {
		data[i] = opts.BarData{Value: totals[m]}
	}

	return barChart("Hits per module", "", modules, data)
}

func barChart(title, subtitle string, labels []string, data []opts.BarData) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle, Left: "center"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Hits"}),
	)

	bar.SetXAxis(labels)
	bar.AddSeries("Hits", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: hitsColor}))

	return bar
}

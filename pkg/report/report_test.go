package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
	"github.com/Sumatoshi-tech/sipgen/pkg/generator"
	"github.com/Sumatoshi-tech/sipgen/pkg/report"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

func init() {
	color.NoColor = true //nolint:reassign // plain output for assertions.
}

func sampleUsage() []rules.Usage {
	return []rules.Usage{
		{Module: "KCodecs", Stage: rules.StageFunction, Rule: "[0,function_discard]", Patterns: []string{"KCodecs::Codec", "encode"}, Hits: 4},
		{Module: "KCodecs", Stage: rules.StageTypedef, Rule: "[0,typedef_discard]", Patterns: []string{".*", "Ptr"}, Hits: 0},
		{Module: "KCoreAddons", Stage: rules.StageModuleCode, Rule: "kaboutdata.h", Hits: 1},
	}
}

func TestUsageTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.UsageTable(&buf, sampleUsage()))

	out := buf.String()

	assert.Contains(t, out, "[0,function_discard]")
	assert.Contains(t, out, `["KCodecs::Codec", "encode"]`)
	assert.Contains(t, out, "modulecode")
	assert.Contains(t, out, "3 rules")
	assert.NotContains(t, out, "RULES")

	_, unused, found := strings.Cut(out, "1 unused:\n")
	require.True(t, found)
	assert.Equal(t, "  KCodecs typedef [0,typedef_discard] [\".*\", \"Ptr\"]\n", unused)
}

func TestUsageTable_AllUsed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.UsageTable(&buf, sampleUsage()[:1]))
	assert.NotContains(t, buf.String(), "unused")
}

func TestUsageChart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.UsageChart(&buf, "PyKF5 rule usage", sampleUsage()))

	out := buf.String()

	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "PyKF5 rule usage")
	assert.Contains(t, out, "Busiest rules")
	assert.Contains(t, out, "Hits per module")
	assert.Contains(t, out, "KCoreAddons")
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	summary := &generator.Summary{
		Attempts:    1200,
		Directories: 3,
		Failures:    []generator.Failure{{Path: "src/KFoo/broken.h", Err: errors.New("boom")}},
		Written:     []string{"KFoo/foo.sip"},
	}

	stats := cache.Stats{Hits: 3, Misses: 1, Entries: 4, CurrentSize: 2048, MaxSize: 1 << 20}

	var buf bytes.Buffer

	report.PrintSummary(&buf, report.Run{Summary: summary, Elapsed: 1500 * time.Millisecond, Cache: &stats})

	assert.Equal(t, "1,200 headers in 3 directories, 1 failed, in 1.5s\n"+
		"  src/KFoo/broken.h: boom\n"+
		"1 files written\n"+
		"cache: 75% hits, 4 entries, 2.0 KiB of 1.0 MiB\n", buf.String())
}

func TestPrintSummary_Check(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	report.PrintSummary(&buf, report.Run{
		Summary: &generator.Summary{Attempts: 2, Directories: 1, Written: []string{"KFoo/KFoomod.sip"}},
		Check:   true,
	})

	assert.Equal(t, "2 headers in 1 directories, 0 failed, in 0s\n1 files out of date\n  KFoo/KFoomod.sip\n", buf.String())
}

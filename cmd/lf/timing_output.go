package main

import (
	"fmt"
	"io"

	"lf/internal/buildpipeline"
	"lf/internal/observ"
)

var timingLabels = []struct {
	stage buildpipeline.Stage
	label string
}{
	{buildpipeline.StageParse, "parsed"},
	{buildpipeline.StageScreen, "screened"},
	{buildpipeline.StageSerialize, "serialized"},
	{buildpipeline.StagePackage, "packaged"},
	{buildpipeline.StageBundle, "bundled"},
	{buildpipeline.StageRun, "ran"},
}

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	for _, tl := range timingLabels {
		if timings.Has(tl.stage) {
			fmt.Fprintf(out, "%s %.1f ms\n", tl.label, observ.Millis(timings.Duration(tl.stage)))
		}
	}
}

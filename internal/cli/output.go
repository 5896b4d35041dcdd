package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/windmix/fanbench/internal/config"
	"github.com/windmix/fanbench/internal/orchestration"
)

// StructuredPresenter writes every report as one JSON or YAML document.
// Errors are still described in plain text, on the error writer.
type StructuredPresenter struct {
	Format string
	// ErrOut receives error descriptions. Nil means the summary writer.
	ErrOut io.Writer
}

var (
	_ orchestration.ResultPresenter = StructuredPresenter{}
	_ orchestration.ErrorHandler    = StructuredPresenter{}
)

type infoDocument struct {
	Kind                     string `json:"kind" yaml:"kind"`
	orchestration.InfoReport `yaml:",inline"`
}

type runDocument struct {
	Kind                    string `json:"kind" yaml:"kind"`
	orchestration.RunReport `yaml:",inline"`
}

// PresentInfo encodes the information report.
func (p StructuredPresenter) PresentInfo(info orchestration.InfoReport, out io.Writer) {
	p.encode(infoDocument{Kind: "info", InfoReport: info}, out)
}

// PresentRun encodes a run report. Per-worker items are kept only with Details.
func (p StructuredPresenter) PresentRun(report orchestration.RunReport, opts orchestration.PresentationOptions, out io.Writer) {
	if !opts.Details && report.Aggregate != nil {
		agg := *report.Aggregate
		agg.Items = nil
		report.Aggregate = &agg
	}
	if !opts.Verbose {
		report.Memory = nil
	}
	p.encode(runDocument{Kind: "run", RunReport: report}, out)
}

// HandleError prints the error as text and returns its exit code.
func (p StructuredPresenter) HandleError(err error, duration time.Duration, out io.Writer) int {
	if p.ErrOut != nil {
		out = p.ErrOut
	}
	return CLIResultPresenter{}.HandleError(err, duration, out)
}

func (p StructuredPresenter) encode(doc any, out io.Writer) {
	var err error
	switch p.Format {
	case config.FormatYAML:
		fmt.Fprintln(out, "---")
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		err = enc.Encode(doc)
		if err == nil {
			err = enc.Close()
		}
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	}
	if err != nil {
		fmt.Fprintf(out, "encoding %s report: %v\n", p.Format, err)
	}
}

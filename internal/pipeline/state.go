package pipeline

import (
	"time"

	"github.com/dvloznov/ceap-risk/internal/briefing"
	"github.com/dvloznov/ceap-risk/internal/domain"
	"github.com/dvloznov/ceap-risk/internal/ingest"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/metrics"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/rs/zerolog"
)

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	StartedAt time.Time
	Log       zerolog.Logger

	Source   report.SourceInfo
	Table    *ingest.Table
	Expenses *ingest.Expenses
	Dataset  *domain.Dataset
	Warnings []string

	Aggregations *report.Aggregations
	Result       *risk.Result
	FraudFlags   []report.FraudFlag
	Mismatches   []report.Mismatch
	Manifest     *report.Manifest
	Briefings    []briefing.Briefing

	// Written lists every local path and URI produced, in write order.
	Written []string

	runStarted   bool
	runSucceeded bool
}

// Bundle returns the output documents of the run.
func (s *PipelineState) Bundle() *report.Bundle {
	b := &report.Bundle{
		Aggregations: s.Aggregations,
		FraudFlags:   s.FraudFlags,
		Mismatches:   s.Mismatches,
		Manifest:     s.Manifest,
	}
	if s.Result != nil {
		b.Deputies = s.Result.Profiles
	}
	return b
}

// warn records a non-blocking finding.
func (s *PipelineState) warn(stage, msg string) {
	s.Warnings = append(s.Warnings, msg)
	metrics.ValidationWarningsTotal.WithLabelValues(stage).Inc()
	s.Log.Warn().Str(logger.FieldStep, stage).Msg(msg)
}

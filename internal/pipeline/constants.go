package pipeline

// Step names used in logs and the step duration metric.
const (
	StepStartRun          = "start_run"
	StepLoadSources       = "load_sources"
	StepValidateExpenses  = "validate_expenses"
	StepBuildAggregations = "build_aggregations"
	StepScoreLegislators  = "score_legislators"
	StepMapFraudFlags     = "map_fraud_flags"
	StepMapMismatches     = "map_mismatches"
	StepBuildManifest     = "build_manifest"
	StepValidateOutputs   = "validate_outputs"
	StepWriteOutputs      = "write_outputs"
	StepPersistWarehouse  = "persist_warehouse"
	StepBriefing          = "briefing"
)

// Warning stages, used as the validation warnings metric label.
const (
	stageSources   = "sources"
	stageStructure = "structure"
	stageQuality   = "quality"
	stageScoring   = "scoring"
	stageOutput    = "output"
	stageBriefing  = "briefing"
)

// Run statuses reported to metrics.
const (
	runStatusSuccess = "success"
	runStatusFailed  = "failed"
)

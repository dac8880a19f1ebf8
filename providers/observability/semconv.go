package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across the pipeline engine, the LLM transport, and the tool layer.

// --- Pipeline Attributes ---

const (
	// AttrRunID is the unique identifier of a pipeline run
	AttrRunID = "run.id"

	// AttrRunStatus is the lifecycle status of a run
	AttrRunStatus = "run.status"

	// AttrStage is the workflow stage name (e.g., "preprocess", "strategy")
	AttrStage = "stage.name"

	// AttrStageAttempt is the 1-based attempt number for a stage execution
	AttrStageAttempt = "stage.attempt"

	// AttrStageRetryBudget is the configured retry cap for the stage
	AttrStageRetryBudget = "stage.retry_budget"

	// AttrBranchID identifies a fan-out branch (e.g., "prompt_slot_3")
	AttrBranchID = "branch.id"

	// AttrBranchRequired indicates whether the branch is required for aggregation
	AttrBranchRequired = "branch.required"

	// AttrSlotIndex is the 1-based strategy slot index a branch works on
	AttrSlotIndex = "slot.index"

	// AttrValidationTier is the tier that produced a validation result
	AttrValidationTier = "validation.tier"

	// AttrValidationPassed reports the outcome of a validation gate
	AttrValidationPassed = "validation.passed"

	// AttrValidationIssues is the number of issues found by a gate
	AttrValidationIssues = "validation.issues"
)

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the name of the LLM provider (e.g., "openai", "anthropic")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier (e.g., "gpt-4o", "claude-sonnet-4-5")
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMResponseID is the unique response identifier from the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"
)

// --- Token Usage Attributes ---

const (
	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Tool Execution Attributes ---

const (
	// AttrToolName is the name of the tool being executed
	AttrToolName = "tool.name"

	// AttrToolInput is the tool input (serialized)
	AttrToolInput = "tool.input"

	// AttrToolDuration is the execution duration
	AttrToolDuration = "tool.duration"
)

// --- Request/Response Attributes ---

const (
	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"

	// AttrRequestToolsCount is the number of tools in the request
	AttrRequestToolsCount = "request.tools_count"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is the status description
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanPipelineRun is the span name for an entire pipeline run
	SpanPipelineRun = "pipeline.run"

	// SpanStageExecute is the span name for a single stage execution
	SpanStageExecute = "pipeline.stage.execute"

	// SpanBranchExecute is the span name for a fan-out branch execution
	SpanBranchExecute = "pipeline.branch.execute"

	// SpanValidationGate is the span name for a validation gate evaluation
	SpanValidationGate = "validation.gate"

	// SpanClientSendMessage is the span name for client message sending
	SpanClientSendMessage = "client.send_message"

	// SpanToolExecution is the span name for tool executions
	SpanToolExecution = "tool.execution"
)

// --- Event Names ---

const (
	// EventLLMRequestStart marks the start of an LLM request
	EventLLMRequestStart = "llm.request.start"

	// EventLLMRequestEnd marks the end of an LLM request
	EventLLMRequestEnd = "llm.request.end"

	// EventToolExecutionStart marks the start of tool execution
	EventToolExecutionStart = "tool.execution.start"

	// EventToolExecutionEnd marks the end of tool execution
	EventToolExecutionEnd = "tool.execution.end"

	// EventTokensReceived marks when tokens are received from an LLM
	EventTokensReceived = "llm.tokens.received" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// EventStageRetry marks a stage retry triggered by a failed gate
	EventStageRetry = "stage.retry"

	// EventRunCancelled marks a run-level cancellation observed by the engine
	EventRunCancelled = "run.cancelled"
)

// --- Metric Names ---

const (
	// MetricClientRequestCount is the counter for client requests
	MetricClientRequestCount = "listing.client.request.count"

	// MetricClientRequestDuration is the histogram for request duration
	MetricClientRequestDuration = "listing.client.request.duration"

	// MetricClientTokensTotal is the counter for total tokens
	MetricClientTokensTotal = "listing.client.tokens.total"

	// MetricStageDuration is the histogram for stage execution duration
	MetricStageDuration = "listing.stage.duration"

	// MetricStageRetryCount is the counter for stage retries
	MetricStageRetryCount = "listing.stage.retry.count"

	// MetricValidationFailCount is the counter for failed validation gates by tier
	MetricValidationFailCount = "listing.validation.fail.count"
)

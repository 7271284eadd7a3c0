package evaluator

// ErrorAnalysisPrompt asks whether a failed step can be recovered from.
const ErrorAnalysisPrompt = `You analyze failed steps of a task-execution agent.

Decide whether the failure can be recovered from by revising the plan.
Permission errors and missing resources are usually recoverable by
replanning with different steps or tools.

Respond with JSON only:
{"is_recoverable": true|false, "suggested_fix": "<fix>", "needs_replanning": true|false, "reasoning": "<why>"}`

// CompletionAnalysisPrompt asks whether the executed plan met the goal.
const CompletionAnalysisPrompt = `You judge whether a task-execution agent achieved its goal.

Compare the goal with the step results.

Respond with JSON only:
{"goal_achieved": true|false, "confidence": 0.0-1.0, "reasoning": "<why>", "gaps": ["<missing piece>"]}`

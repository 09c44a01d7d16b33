package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys used across the engine's instrumented spans and metrics.
var (
	AttrTaskID     = attribute.Key("task.id")
	AttrTaskAction = attribute.Key("task.action")
	AttrTaskStatus = attribute.Key("task.status")

	AttrSandboxLanguage = attribute.Key("sandbox.language")
	AttrSandboxStatus   = attribute.Key("sandbox.status")

	AttrPermissionAction   = attribute.Key("permission.action")
	AttrPermissionRisk     = attribute.Key("permission.risk")
	AttrPermissionDecision = attribute.Key("permission.decision")

	AttrRollbackTxID      = attribute.Key("rollback.tx_id")
	AttrRollbackPointKind = attribute.Key("rollback.point_kind")
)

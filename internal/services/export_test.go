package services

// AuditWriteFailures exposes the failure counter to the external test package.
var AuditWriteFailures = auditWriteFailures

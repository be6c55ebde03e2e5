package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_definitions (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				triggers JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_definitions_tenant ON workflow_definitions (tenant_id);
			CREATE INDEX idx_workflow_definitions_enabled ON workflow_definitions (tenant_id, enabled);

			CREATE TABLE workflow_instances (
				id TEXT PRIMARY KEY,
				definition_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				status TEXT NOT NULL,
				triggered_by TEXT NOT NULL DEFAULT '',
				trigger_data JSONB DEFAULT '{}',
				executed_actions INTEGER NOT NULL DEFAULT 0,
				failed_actions INTEGER NOT NULL DEFAULT 0,
				progress_percentage INTEGER NOT NULL DEFAULT 0,
				action_executions JSONB NOT NULL DEFAULT '[]',
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_instances_definition ON workflow_instances (definition_id, created_at DESC);
			CREATE INDEX idx_workflow_instances_status ON workflow_instances (definition_id, status);
		`,
	}
}

package types

// Table names and primary-key columns. The generic access layer is
// parameterized by these; the column slices double as the allowlist for
// record keys, filter criteria, and order-by clauses.
const (
	TableItems         = "pharmacopoeia_items"
	TableInspectors    = "inspectors"
	TableLaboratories  = "laboratories"
	TableLabAccess     = "inspector_lab_access"
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableExperiments   = "experiment_records"
	TableDataPoints    = "experiment_data_points"
	TableSystemConfigs = "system_configs"
)

// Primary-key column per table.
const (
	IDItems         = "item_id"
	IDInspectors    = "inspector_id"
	IDLaboratories  = "lab_id"
	IDLabAccess     = "access_id"
	IDConversations = "conversation_id"
	IDMessages      = "message_id"
	IDExperiments   = "experiment_id"
	IDDataPoints    = "data_point_id"
	IDSystemConfigs = "config_key"
)

// Column allowlists. Order matters only for readability; the access
// layer treats these as sets.
var (
	ItemColumns = []string{
		"item_id", "volume", "doc_id", "name_cn", "name_pinyin",
		"name_en", "category", "content", "created_at",
	}

	InspectorColumns = []string{
		"inspector_id", "employee_no", "name", "phone", "email",
		"department", "title", "certification_level", "join_date",
		"is_active", "created_at",
	}

	LaboratoryColumns = []string{
		"lab_id", "lab_code", "lab_name", "location", "certification",
		"equipment_level", "created_at",
	}

	LabAccessColumns = []string{
		"access_id", "inspector_id", "lab_id", "access_level",
		"granted_date",
	}

	ConversationColumns = []string{
		"conversation_id", "inspector_id", "session_id", "start_time",
		"end_time", "total_messages", "session_type", "context_topic",
		"last_message_at",
	}

	MessageColumns = []string{
		"message_id", "conversation_id", "message_seq", "sender_type",
		"message_text", "intent", "confidence_score", "response_time_ms",
		"referenced_item_id", "created_at",
	}

	ExperimentColumns = []string{
		"experiment_id", "experiment_no", "inspector_id", "lab_id",
		"item_id", "experiment_type", "batch_no", "experiment_date",
		"start_time", "end_time", "status", "result", "conclusion",
		"created_at",
	}

	DataPointColumns = []string{
		"data_point_id", "experiment_id", "measurement_type",
		"measurement_value", "measurement_unit", "standard_min",
		"standard_max", "is_qualified", "measurement_time",
	}

	SystemConfigColumns = []string{
		"config_key", "config_value", "config_type", "description",
		"category", "is_editable", "updated_by", "updated_at",
	}
)

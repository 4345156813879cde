package types

import "time"

// Message sender types.
const (
	SenderInspector = "inspector"
	SenderSystem    = "system"
)

// Experiment status values, kept as stored by the source data set.
const (
	StatusInProgress = "进行中"
	StatusCompleted  = "已完成"
	StatusAborted    = "已中止"
)

// Experiment result values.
const (
	ResultPass    = "合格"
	ResultFail    = "不合格"
	ResultPending = "待定"
)

// Lab access levels.
const (
	AccessNormal   = "普通"
	AccessAdvanced = "高级"
	AccessAdmin    = "管理"
)

// PharmacopoeiaItem is a reference-text entry, identified by the unique
// (volume, doc_id) pair. Immutable once imported.
type PharmacopoeiaItem struct {
	ItemID     int64
	Volume     int
	DocID      int64
	NameCN     string
	NamePinyin *string
	NameEN     *string
	Category   *string
	Content    *string
	CreatedAt  time.Time
}

// Record returns the insertable column view of the item.
func (p *PharmacopoeiaItem) Record() Record {
	return Record{
		"volume":      p.Volume,
		"doc_id":      p.DocID,
		"name_cn":     p.NameCN,
		"name_pinyin": p.NamePinyin,
		"name_en":     p.NameEN,
		"category":    p.Category,
		"content":     p.Content,
	}
}

// ItemFromRecord converts a row Record into a PharmacopoeiaItem.
func ItemFromRecord(r Record) *PharmacopoeiaItem {
	p := &PharmacopoeiaItem{}
	p.ItemID, _ = AsInt64(r["item_id"])
	if v, ok := AsInt64(r["volume"]); ok {
		p.Volume = int(v)
	}
	p.DocID, _ = AsInt64(r["doc_id"])
	p.NameCN, _ = AsString(r["name_cn"])
	p.NamePinyin = optString(r["name_pinyin"])
	p.NameEN = optString(r["name_en"])
	p.Category = optString(r["category"])
	p.Content = optString(r["content"])
	p.CreatedAt = asTime(r["created_at"])
	return p
}

// Inspector is a pharmacopoeia inspector with a unique employee number.
type Inspector struct {
	InspectorID        int64
	EmployeeNo         string
	Name               string
	Phone              *string
	Email              *string
	Department         *string
	Title              *string
	CertificationLevel *string
	JoinDate           *time.Time
	IsActive           bool
	CreatedAt          time.Time
}

func (i *Inspector) Record() Record {
	return Record{
		"employee_no":         i.EmployeeNo,
		"name":                i.Name,
		"phone":               i.Phone,
		"email":               i.Email,
		"department":          i.Department,
		"title":               i.Title,
		"certification_level": i.CertificationLevel,
		"join_date":           i.JoinDate,
		"is_active":           i.IsActive,
	}
}

func InspectorFromRecord(r Record) *Inspector {
	i := &Inspector{}
	i.InspectorID, _ = AsInt64(r["inspector_id"])
	i.EmployeeNo, _ = AsString(r["employee_no"])
	i.Name, _ = AsString(r["name"])
	i.Phone = optString(r["phone"])
	i.Email = optString(r["email"])
	i.Department = optString(r["department"])
	i.Title = optString(r["title"])
	i.CertificationLevel = optString(r["certification_level"])
	i.JoinDate = optTime(r["join_date"])
	i.IsActive, _ = AsBool(r["is_active"])
	i.CreatedAt = asTime(r["created_at"])
	return i
}

// Laboratory is a testing laboratory with a unique lab code.
type Laboratory struct {
	LabID          int64
	LabCode        string
	LabName        string
	Location       *string
	Certification  *string
	EquipmentLevel *string
	CreatedAt      time.Time
}

func (l *Laboratory) Record() Record {
	return Record{
		"lab_code":        l.LabCode,
		"lab_name":        l.LabName,
		"location":        l.Location,
		"certification":   l.Certification,
		"equipment_level": l.EquipmentLevel,
	}
}

func LaboratoryFromRecord(r Record) *Laboratory {
	l := &Laboratory{}
	l.LabID, _ = AsInt64(r["lab_id"])
	l.LabCode, _ = AsString(r["lab_code"])
	l.LabName, _ = AsString(r["lab_name"])
	l.Location = optString(r["location"])
	l.Certification = optString(r["certification"])
	l.EquipmentLevel = optString(r["equipment_level"])
	l.CreatedAt = asTime(r["created_at"])
	return l
}

// LabAccess is a grant linking an inspector to a laboratory; unique per
// (inspector_id, lab_id) pair.
type LabAccess struct {
	AccessID    int64
	InspectorID int64
	LabID       int64
	AccessLevel string
	GrantedDate *time.Time
}

func (a *LabAccess) Record() Record {
	rec := Record{
		"inspector_id": a.InspectorID,
		"lab_id":       a.LabID,
		"access_level": a.AccessLevel,
	}
	if a.GrantedDate != nil {
		rec["granted_date"] = a.GrantedDate
	}
	return rec
}

func LabAccessFromRecord(r Record) *LabAccess {
	a := &LabAccess{}
	a.AccessID, _ = AsInt64(r["access_id"])
	a.InspectorID, _ = AsInt64(r["inspector_id"])
	a.LabID, _ = AsInt64(r["lab_id"])
	a.AccessLevel, _ = AsString(r["access_level"])
	a.GrantedDate = optTime(r["granted_date"])
	return a
}

// Conversation is one inspector session. TotalMessages is denormalized
// and only mutated together with message batches for the conversation.
type Conversation struct {
	ConversationID int64
	InspectorID    int64
	SessionID      string
	StartTime      time.Time
	EndTime        *time.Time
	TotalMessages  int
	SessionType    *string
	ContextTopic   *string
	LastMessageAt  *time.Time
}

func (c *Conversation) Record() Record {
	rec := Record{
		"inspector_id":   c.InspectorID,
		"session_id":     c.SessionID,
		"total_messages": c.TotalMessages,
		"session_type":   c.SessionType,
		"context_topic":  c.ContextTopic,
	}
	if !c.StartTime.IsZero() {
		rec["start_time"] = c.StartTime
	}
	if c.EndTime != nil {
		rec["end_time"] = c.EndTime
	}
	return rec
}

func ConversationFromRecord(r Record) *Conversation {
	c := &Conversation{}
	c.ConversationID, _ = AsInt64(r["conversation_id"])
	c.InspectorID, _ = AsInt64(r["inspector_id"])
	c.SessionID, _ = AsString(r["session_id"])
	c.StartTime = asTime(r["start_time"])
	c.EndTime = optTime(r["end_time"])
	if v, ok := AsInt64(r["total_messages"]); ok {
		c.TotalMessages = int(v)
	}
	c.SessionType = optString(r["session_type"])
	c.ContextTopic = optString(r["context_topic"])
	c.LastMessageAt = optTime(r["last_message_at"])
	return c
}

// Message is one turn in a conversation, ordered by MessageSeq.
type Message struct {
	MessageID        int64
	ConversationID   int64
	MessageSeq       int
	SenderType       string
	MessageText      string
	Intent           *string
	ConfidenceScore  *float64
	ResponseTimeMS   *int
	ReferencedItemID *int64
	CreatedAt        time.Time
}

func (m *Message) Record() Record {
	return Record{
		"conversation_id":    m.ConversationID,
		"message_seq":        m.MessageSeq,
		"sender_type":        m.SenderType,
		"message_text":       m.MessageText,
		"intent":             m.Intent,
		"confidence_score":   m.ConfidenceScore,
		"response_time_ms":   m.ResponseTimeMS,
		"referenced_item_id": m.ReferencedItemID,
	}
}

func MessageFromRecord(r Record) *Message {
	m := &Message{}
	m.MessageID, _ = AsInt64(r["message_id"])
	m.ConversationID, _ = AsInt64(r["conversation_id"])
	if v, ok := AsInt64(r["message_seq"]); ok {
		m.MessageSeq = int(v)
	}
	m.SenderType, _ = AsString(r["sender_type"])
	m.MessageText, _ = AsString(r["message_text"])
	m.Intent = optString(r["intent"])
	if v, ok := AsFloat64(r["confidence_score"]); ok {
		m.ConfidenceScore = &v
	}
	if v, ok := AsInt64(r["response_time_ms"]); ok {
		n := int(v)
		m.ResponseTimeMS = &n
	}
	if v, ok := AsInt64(r["referenced_item_id"]); ok {
		m.ReferencedItemID = &v
	}
	m.CreatedAt = asTime(r["created_at"])
	return m
}

// ExperimentRecord is one inspection experiment against a pharmacopoeia
// item, run by an inspector in a laboratory.
type ExperimentRecord struct {
	ExperimentID   int64
	ExperimentNo   string
	InspectorID    int64
	LabID          int64
	ItemID         int64
	ExperimentType *string
	BatchNo        *string
	ExperimentDate time.Time
	StartTime      *time.Time
	EndTime        *time.Time
	Status         string
	Result         string
	Conclusion     *string
	CreatedAt      time.Time
}

func (e *ExperimentRecord) Record() Record {
	rec := Record{
		"experiment_no":   e.ExperimentNo,
		"inspector_id":    e.InspectorID,
		"lab_id":          e.LabID,
		"item_id":         e.ItemID,
		"experiment_type": e.ExperimentType,
		"batch_no":        e.BatchNo,
	}
	if !e.ExperimentDate.IsZero() {
		rec["experiment_date"] = e.ExperimentDate
	}
	if e.StartTime != nil {
		rec["start_time"] = e.StartTime
	}
	if e.EndTime != nil {
		rec["end_time"] = e.EndTime
	}
	if e.Status != "" {
		rec["status"] = e.Status
	}
	if e.Result != "" {
		rec["result"] = e.Result
	}
	if e.Conclusion != nil {
		rec["conclusion"] = e.Conclusion
	}
	return rec
}

func ExperimentFromRecord(r Record) *ExperimentRecord {
	e := &ExperimentRecord{}
	e.ExperimentID, _ = AsInt64(r["experiment_id"])
	e.ExperimentNo, _ = AsString(r["experiment_no"])
	e.InspectorID, _ = AsInt64(r["inspector_id"])
	e.LabID, _ = AsInt64(r["lab_id"])
	e.ItemID, _ = AsInt64(r["item_id"])
	e.ExperimentType = optString(r["experiment_type"])
	e.BatchNo = optString(r["batch_no"])
	e.ExperimentDate = asTime(r["experiment_date"])
	e.StartTime = optTime(r["start_time"])
	e.EndTime = optTime(r["end_time"])
	e.Status, _ = AsString(r["status"])
	e.Result, _ = AsString(r["result"])
	e.Conclusion = optString(r["conclusion"])
	e.CreatedAt = asTime(r["created_at"])
	return e
}

// ExperimentDataPoint is one measurement inside an experiment. When both
// standard bounds are present, IsQualified must equal
// standard_min <= value <= standard_max.
type ExperimentDataPoint struct {
	DataPointID      int64
	ExperimentID     int64
	MeasurementType  string
	MeasurementValue *float64
	MeasurementUnit  *string
	StandardMin      *float64
	StandardMax      *float64
	IsQualified      *bool
	MeasurementTime  *time.Time
}

func (d *ExperimentDataPoint) Record() Record {
	rec := Record{
		"experiment_id":     d.ExperimentID,
		"measurement_type":  d.MeasurementType,
		"measurement_value": d.MeasurementValue,
		"measurement_unit":  d.MeasurementUnit,
		"standard_min":      d.StandardMin,
		"standard_max":      d.StandardMax,
		"is_qualified":      d.IsQualified,
	}
	if d.MeasurementTime != nil {
		rec["measurement_time"] = d.MeasurementTime
	}
	return rec
}

func DataPointFromRecord(r Record) *ExperimentDataPoint {
	d := &ExperimentDataPoint{}
	d.DataPointID, _ = AsInt64(r["data_point_id"])
	d.ExperimentID, _ = AsInt64(r["experiment_id"])
	d.MeasurementType, _ = AsString(r["measurement_type"])
	if v, ok := AsFloat64(r["measurement_value"]); ok {
		d.MeasurementValue = &v
	}
	d.MeasurementUnit = optString(r["measurement_unit"])
	if v, ok := AsFloat64(r["standard_min"]); ok {
		d.StandardMin = &v
	}
	if v, ok := AsFloat64(r["standard_max"]); ok {
		d.StandardMax = &v
	}
	if v, ok := AsBool(r["is_qualified"]); ok {
		d.IsQualified = &v
	}
	d.MeasurementTime = optTime(r["measurement_time"])
	return d
}

// SystemConfig is one key-value configuration row; config_key is the
// primary key.
type SystemConfig struct {
	ConfigKey   string
	ConfigValue string
	ConfigType  string
	Description *string
	Category    *string
	IsEditable  bool
	UpdatedBy   *string
	UpdatedAt   time.Time
}

func (s *SystemConfig) Record() Record {
	return Record{
		"config_key":   s.ConfigKey,
		"config_value": s.ConfigValue,
		"config_type":  s.ConfigType,
		"description":  s.Description,
		"category":     s.Category,
		"is_editable":  s.IsEditable,
		"updated_by":   s.UpdatedBy,
	}
}

func SystemConfigFromRecord(r Record) *SystemConfig {
	s := &SystemConfig{}
	s.ConfigKey, _ = AsString(r["config_key"])
	s.ConfigValue, _ = AsString(r["config_value"])
	s.ConfigType, _ = AsString(r["config_type"])
	s.Description = optString(r["description"])
	s.Category = optString(r["category"])
	s.IsEditable, _ = AsBool(r["is_editable"])
	s.UpdatedBy = optString(r["updated_by"])
	s.UpdatedAt = asTime(r["updated_at"])
	return s
}

func optString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func optTime(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

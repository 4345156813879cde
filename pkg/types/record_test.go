package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int64", int64(42), 42, true},
		{"int32", int32(7), 7, true},
		{"int", 9, 9, true},
		{"float64", float64(3), 3, true},
		{"string", "42", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAsFloat64(t *testing.T) {
	got, ok := AsFloat64(float32(1.5))
	require.True(t, ok)
	assert.InDelta(t, 1.5, got, 1e-9)

	got, ok = AsFloat64(int64(3))
	require.True(t, ok)
	assert.Equal(t, 3.0, got)

	_, ok = AsFloat64("1.5")
	assert.False(t, ok)
}

func TestDeriveQualified(t *testing.T) {
	min, max := 90.0, 110.0

	qualified, ok := DeriveQualified(98.5, &min, &max)
	require.True(t, ok)
	assert.True(t, qualified)

	qualified, ok = DeriveQualified(89.9, &min, &max)
	require.True(t, ok)
	assert.False(t, qualified)

	// Bounds are inclusive.
	qualified, ok = DeriveQualified(90.0, &min, &max)
	require.True(t, ok)
	assert.True(t, qualified)

	qualified, ok = DeriveQualified(110.0, &min, &max)
	require.True(t, ok)
	assert.True(t, qualified)

	// Missing bounds make the flag underivable.
	_, ok = DeriveQualified(98.5, nil, &max)
	assert.False(t, ok)
	_, ok = DeriveQualified(98.5, &min, nil)
	assert.False(t, ok)
}

func TestItemRoundTrip(t *testing.T) {
	pinyin := "yizhihuanghua"
	item := &PharmacopoeiaItem{
		Volume:     1,
		DocID:      49155,
		NameCN:     "一枝黄花",
		NamePinyin: &pinyin,
	}
	rec := item.Record()
	rec["item_id"] = int64(12)

	got := ItemFromRecord(rec)
	assert.Equal(t, int64(12), got.ItemID)
	assert.Equal(t, 1, got.Volume)
	assert.Equal(t, int64(49155), got.DocID)
	assert.Equal(t, "一枝黄花", got.NameCN)
	require.NotNil(t, got.NamePinyin)
	assert.Equal(t, "yizhihuanghua", *got.NamePinyin)
	assert.Nil(t, got.Category)
}

func TestExperimentRecordOmitsUnsetDefaults(t *testing.T) {
	e := &ExperimentRecord{
		ExperimentNo: "EXP0000000001",
		InspectorID:  1,
		LabID:        2,
		ItemID:       3,
	}
	rec := e.Record()

	// Unset status, result, and date stay absent so the database
	// defaults apply.
	_, hasStatus := rec["status"]
	_, hasResult := rec["result"]
	_, hasDate := rec["experiment_date"]
	assert.False(t, hasStatus)
	assert.False(t, hasResult)
	assert.False(t, hasDate)

	e.Status = StatusCompleted
	e.Result = ResultPass
	rec = e.Record()
	assert.Equal(t, StatusCompleted, rec["status"])
	assert.Equal(t, ResultPass, rec["result"])
}

func TestMessageFromRecord(t *testing.T) {
	rec := Record{
		"message_id":         int64(5),
		"conversation_id":    int64(2),
		"message_seq":        int32(3),
		"sender_type":        SenderSystem,
		"message_text":       "根据药典标准检验。",
		"confidence_score":   0.92,
		"response_time_ms":   int32(350),
		"referenced_item_id": int64(7),
	}
	m := MessageFromRecord(rec)
	assert.Equal(t, int64(5), m.MessageID)
	assert.Equal(t, 3, m.MessageSeq)
	assert.Equal(t, SenderSystem, m.SenderType)
	require.NotNil(t, m.ConfidenceScore)
	assert.InDelta(t, 0.92, *m.ConfidenceScore, 1e-9)
	require.NotNil(t, m.ResponseTimeMS)
	assert.Equal(t, 350, *m.ResponseTimeMS)
	require.NotNil(t, m.ReferencedItemID)
	assert.Equal(t, int64(7), *m.ReferencedItemID)
	assert.Nil(t, m.Intent)
}
